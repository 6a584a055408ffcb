package kv

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/go-go-golems/palimpsest/pkg/versions"
	"github.com/pkg/errors"
)

// Snapshots serializes version-store state into a Store under keys namespaced
// by conversation id: versions:{id}, cursor:{id}, editHistory:{id}.
//
// It implements both versions.Snapshotter and versions.Restorer.
type Snapshots struct {
	store Store
}

func NewSnapshots(store Store) *Snapshots {
	return &Snapshots{store: store}
}

func versionsKey(conversationID string) string    { return "versions:" + conversationID }
func cursorKey(conversationID string) string      { return "cursor:" + conversationID }
func editHistoryKey(conversationID string) string { return "editHistory:" + conversationID }

func (s *Snapshots) SaveVersions(conversationID string, vs []versions.Version) error {
	data, err := json.Marshal(vs)
	if err != nil {
		return errors.Wrap(err, "marshaling versions")
	}
	return s.store.Set(context.Background(), versionsKey(conversationID), string(data))
}

func (s *Snapshots) SaveCursor(conversationID string, cursor int) error {
	return s.store.Set(context.Background(), cursorKey(conversationID), strconv.Itoa(cursor))
}

func (s *Snapshots) SaveEditHistory(conversationID string, edits []versions.Edit) error {
	data, err := json.Marshal(edits)
	if err != nil {
		return errors.Wrap(err, "marshaling edit history")
	}
	return s.store.Set(context.Background(), editHistoryKey(conversationID), string(data))
}

func (s *Snapshots) Clear(conversationID string) error {
	ctx := context.Background()
	var firstErr error
	for _, key := range []string{
		versionsKey(conversationID),
		cursorKey(conversationID),
		editHistoryKey(conversationID),
	} {
		if err := s.store.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Snapshots) LoadVersions(conversationID string) ([]versions.Version, error) {
	data, err := s.store.Get(context.Background(), versionsKey(conversationID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var vs []versions.Version
	if err := json.Unmarshal([]byte(data), &vs); err != nil {
		return nil, errors.Wrap(err, "unmarshaling versions")
	}
	return vs, nil
}

func (s *Snapshots) LoadCursor(conversationID string) (int, error) {
	data, err := s.store.Get(context.Background(), cursorKey(conversationID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	cursor, err := strconv.Atoi(data)
	if err != nil {
		return 0, errors.Wrap(err, "parsing cursor")
	}
	return cursor, nil
}

func (s *Snapshots) LoadEditHistory(conversationID string) ([]versions.Edit, error) {
	data, err := s.store.Get(context.Background(), editHistoryKey(conversationID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var edits []versions.Edit
	if err := json.Unmarshal([]byte(data), &edits); err != nil {
		return nil, errors.Wrap(err, "unmarshaling edit history")
	}
	return edits, nil
}

var _ versions.Snapshotter = (*Snapshots)(nil)
var _ versions.Restorer = (*Snapshots)(nil)

package versions

import (
	"sync"

	"github.com/go-go-golems/palimpsest/pkg/chat"
	"github.com/rs/zerolog/log"
)

// Registry holds the version store of every open conversation. A store is
// created the first time a conversation is initialized and destroyed when the
// conversation is removed.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store

	snapshots Snapshotter
	restorer  Restorer
	restore   bool
}

type RegistryOption func(*Registry)

func WithSnapshotter(snapshots Snapshotter) RegistryOption {
	return func(r *Registry) {
		r.snapshots = snapshots
	}
}

// WithRestore rehydrates stores from the given Restorer on initialize. Off by
// default: the original implementation wrote snapshots without ever reading
// them back, so restore is opt-in.
func WithRestore(restorer Restorer) RegistryOption {
	return func(r *Registry) {
		r.restorer = restorer
		r.restore = restorer != nil
	}
}

func NewRegistry(options ...RegistryOption) *Registry {
	ret := &Registry{
		stores:    make(map[string]*Store),
		snapshots: NopSnapshotter{},
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

// Initialize creates the store for a conversation, seeded from the server's
// canonical message list as version 1. Idempotent: a second call for the same
// conversation leaves the existing store untouched.
func (r *Registry) Initialize(conversationID string, serverMessages []chat.Message) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	if store, ok := r.stores[conversationID]; ok {
		log.Debug().Str("conversation_id", conversationID).Msg("store already initialized")
		return store
	}

	if r.restore {
		if store := r.restoreStore(conversationID); store != nil {
			r.stores[conversationID] = store
			return store
		}
	}

	log.Debug().
		Str("conversation_id", conversationID).
		Int("message_count", len(serverMessages)).
		Msg("initializing version store from server messages")

	store := newStore(conversationID, serverMessages, r.snapshots)
	r.stores[conversationID] = store
	store.persistLocked()
	return store
}

func (r *Registry) restoreStore(conversationID string) *Store {
	versions, err := r.restorer.LoadVersions(conversationID)
	if err != nil || len(versions) == 0 {
		if err != nil {
			log.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to restore versions")
		}
		return nil
	}

	cursor, err := r.restorer.LoadCursor(conversationID)
	if err != nil || cursor < 0 || cursor >= len(versions) {
		cursor = len(versions) - 1
	}

	history, err := r.restorer.LoadEditHistory(conversationID)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to restore edit history")
		history = nil
	}

	log.Debug().
		Str("conversation_id", conversationID).
		Int("version_count", len(versions)).
		Int("cursor", cursor).
		Msg("restored version store from snapshots")

	return &Store{
		conversationID: conversationID,
		versions:       versions,
		cursor:         cursor,
		editedIndices:  append([]int{}, versions[cursor].EditedMessageIndices...),
		editHistory:    history,
		snapshots:      r.snapshots,
	}
}

// Get returns the store for a conversation, if one has been initialized.
func (r *Registry) Get(conversationID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	store, ok := r.stores[conversationID]
	return store, ok
}

// Reset clears a conversation back to a single empty version and removes its
// snapshots. Used when a conversation is reopened brand-new (zero messages).
func (r *Registry) Reset(conversationID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	store, ok := r.stores[conversationID]
	if !ok {
		store = newStore(conversationID, nil, r.snapshots)
		r.stores[conversationID] = store
	}
	store.Reset()
	return store
}

// Remove destroys a conversation's store and clears its snapshots. Used when
// the active conversation changes away or is deleted.
func (r *Registry) Remove(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.stores, conversationID)
	if err := r.snapshots.Clear(conversationID); err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to clear snapshots")
	}
}

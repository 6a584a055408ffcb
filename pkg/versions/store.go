package versions

import (
	"sync"
	"time"

	"github.com/go-go-golems/palimpsest/pkg/chat"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrStreamActive is returned when a streaming reply is opened while the
// trailing message is still streaming. One stream per conversation at a time.
var ErrStreamActive = errors.New("a streaming response is already in progress")

// Store owns the authoritative version list and cursor for one conversation.
//
// Invalid input (out-of-range index, empty store) makes operations silent
// no-ops rather than errors: this state sits directly under a UI, and the
// design favors stability over throwing.
type Store struct {
	mu sync.Mutex

	conversationID string
	versions       []Version
	cursor         int

	// editedIndices is the display state of the current version, restored
	// on navigation.
	editedIndices      []int
	editHistory        []Edit
	waitingForResponse bool

	snapshots Snapshotter
}

func newStore(conversationID string, messages []chat.Message, snapshots Snapshotter) *Store {
	if snapshots == nil {
		snapshots = NopSnapshotter{}
	}
	s := &Store{
		conversationID: conversationID,
		snapshots:      snapshots,
	}
	s.versions = []Version{{
		ID:                   1,
		Messages:             cloneMessages(messages),
		Timestamp:            time.Now().Unix(),
		EditedMessageIndices: []int{},
		Edits:                []Edit{},
		ConversationID:       conversationID,
	}}
	return s
}

func (s *Store) ConversationID() string {
	return s.conversationID
}

// Versions returns a copy of the version list.
func (s *Store) Versions() []Version {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Version, len(s.versions))
	copy(out, s.versions)
	return out
}

func (s *Store) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// CurrentVersion returns the version under the cursor.
func (s *Store) CurrentVersion() (Version, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.versions) == 0 {
		return Version{}, false
	}
	return s.versions[s.cursor], true
}

// CurrentMessages returns a copy of the current version's message list.
func (s *Store) CurrentMessages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.versions) == 0 {
		return nil
	}
	return cloneMessages(s.versions[s.cursor].Messages)
}

// EditedMessageIndices returns the display state of edited message indices
// for the current version.
func (s *Store) EditedMessageIndices() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int, len(s.editedIndices))
	copy(out, s.editedIndices)
	return out
}

func (s *Store) EditHistory() []Edit {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Edit, len(s.editHistory))
	copy(out, s.editHistory)
	return out
}

func (s *Store) WaitingForResponse() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitingForResponse
}

func (s *Store) SetWaitingForResponse(waiting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitingForResponse = waiting
}

// AppendMessage appends a message to the current version, suppressing
// duplicates: server sync and local optimistic updates can race, so a message
// identical to the tail (role, content, timestamp) is skipped. Appending an
// assistant message clears a pending waiting-for-response flag.
func (s *Store) AppendMessage(msg chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.versions) == 0 {
		return
	}

	current := &s.versions[s.cursor]
	if n := len(current.Messages); n > 0 && current.Messages[n-1].SameAs(msg) {
		log.Debug().
			Str("conversation_id", s.conversationID).
			Str("role", string(msg.Role)).
			Msg("duplicate message at tail, skipping append")
		return
	}

	current.Messages = append(current.Messages, msg)

	if s.waitingForResponse && msg.Role == chat.RoleAssistant {
		s.waitingForResponse = false
	}

	log.Trace().
		Str("conversation_id", s.conversationID).
		Str("role", string(msg.Role)).
		Int("message_count", len(current.Messages)).
		Msg("appended message to current version")

	s.persistLocked()
}

// NavigateToVersion moves the cursor. Out-of-range indices are ignored.
func (s *Store) NavigateToVersion(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.versions) {
		return
	}

	s.cursor = index
	s.editedIndices = append([]int{}, s.versions[index].EditedMessageIndices...)

	log.Debug().
		Str("conversation_id", s.conversationID).
		Int("cursor", index).
		Msg("navigated to version")

	if err := s.snapshots.SaveCursor(s.conversationID, s.cursor); err != nil {
		log.Error().Err(err).Str("conversation_id", s.conversationID).Msg("failed to snapshot cursor")
	}
}

// Reset clears the store back to a single empty version and removes its
// durable snapshots. Used when switching to a brand-new, empty conversation.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.versions = []Version{{
		ID:                   1,
		Messages:             []chat.Message{},
		Timestamp:            time.Now().Unix(),
		EditedMessageIndices: []int{},
		Edits:                []Edit{},
		ConversationID:       s.conversationID,
	}}
	s.cursor = 0
	s.editedIndices = nil
	s.editHistory = nil
	s.waitingForResponse = false

	if err := s.snapshots.Clear(s.conversationID); err != nil {
		log.Error().Err(err).Str("conversation_id", s.conversationID).Msg("failed to clear snapshots")
	}
}

// fork discards every version beyond the cursor, then appends a new version
// with the given messages and advances the cursor to it. deletedIndex is set
// for delete-last-user-message forks, which also reset the edited-indices
// display state.
func (s *Store) fork(messages []chat.Message, edit Edit, deletedIndex *int) Version {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.versions[:s.cursor+1]
	parent := kept[len(kept)-1]

	var editedIndices []int
	if deletedIndex == nil {
		editedIndices = appendIndex(s.editedIndices, edit.MessageIndex)
	}

	next := Version{
		ID:                   len(kept) + 1,
		Messages:             cloneMessages(messages),
		Timestamp:            time.Now().Unix(),
		EditedMessageIndices: editedIndices,
		Edits:                append(append([]Edit{}, parent.Edits...), edit),
		DeletedMessageIndex:  deletedIndex,
		ConversationID:       s.conversationID,
	}

	s.versions = append(append([]Version{}, kept...), next)
	s.cursor = len(kept)
	s.editedIndices = append([]int{}, editedIndices...)
	s.editHistory = append(s.editHistory, edit)

	log.Debug().
		Str("conversation_id", s.conversationID).
		Int("version_id", next.ID).
		Int("cursor", s.cursor).
		Int("message_count", len(next.Messages)).
		Msg("forked new version")

	s.persistLocked()

	return next
}

// BeginStreaming appends the optimistic user message and an empty streaming
// assistant placeholder to the current version.
func (s *Store) BeginStreaming(userContent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.versions) == 0 {
		return errors.New("store is not initialized")
	}

	current := &s.versions[s.cursor]
	if n := len(current.Messages); n > 0 && current.Messages[n-1].Streaming {
		return ErrStreamActive
	}

	now := time.Now().Unix()
	current.Messages = append(current.Messages,
		chat.NewUserMessage(userContent, chat.WithTimestamp(now), chat.WithIsNew(true)),
		chat.NewAssistantMessage("", chat.WithTimestamp(now), chat.WithStreaming(true), chat.WithIsNew(true)),
	)

	s.persistLocked()
	return nil
}

// AppendStreamDelta concatenates a transport chunk onto the trailing
// streaming assistant message and returns the accumulated content. Chunk
// appends are deliberately not snapshotted; persistence happens on
// version-list changes only, to avoid write amplification.
func (s *Store) AppendStreamDelta(delta string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.trailingStreamingLocked()
	if msg == nil {
		return "", false
	}

	msg.Content += delta
	return msg.Content, true
}

// FinishStreaming clears the trailing message's streaming flag. A non-empty
// final payload replaces the accumulated content (defends against chunk
// loss); an empty one keeps the accumulation as-is.
func (s *Store) FinishStreaming(finalText string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.trailingStreamingLocked()
	if msg == nil {
		return "", false
	}

	if finalText != "" {
		msg.Content = finalText
	}
	msg.Streaming = false

	s.persistLocked()
	return msg.Content, true
}

// AbortStreaming finalizes the trailing streaming message after cancellation
// or a transport error: partial content is kept and a diagnostic suffix is
// appended rather than discarding output.
func (s *Store) AbortStreaming(suffix string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.trailingStreamingLocked()
	if msg == nil {
		return "", false
	}

	msg.Content += suffix
	msg.Streaming = false

	s.persistLocked()
	return msg.Content, true
}

func (s *Store) trailingStreamingLocked() *chat.Message {
	if len(s.versions) == 0 {
		return nil
	}
	current := &s.versions[s.cursor]
	n := len(current.Messages)
	if n == 0 {
		return nil
	}
	msg := &current.Messages[n-1]
	if !msg.Streaming || msg.Role != chat.RoleAssistant {
		return nil
	}
	return msg
}

// ReplaceLatestMessages overwrites the latest version's message list with the
// server-canonical one. Historical versions are never touched; this is the
// single reconciliation point between optimistic local state and the server.
func (s *Store) ReplaceLatestMessages(messages []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.versions) == 0 {
		return
	}

	latest := &s.versions[len(s.versions)-1]
	latest.Messages = cloneMessages(messages)

	log.Debug().
		Str("conversation_id", s.conversationID).
		Int("version_id", latest.ID).
		Int("message_count", len(messages)).
		Msg("reconciled latest version with server messages")

	s.persistLocked()
}

// persistLocked snapshots versions, cursor and edit history. Failures are
// logged and swallowed: persistence is an optimization, not a correctness
// requirement for the current session.
func (s *Store) persistLocked() {
	if err := s.snapshots.SaveVersions(s.conversationID, s.versions); err != nil {
		log.Error().Err(err).Str("conversation_id", s.conversationID).Msg("failed to snapshot versions")
	}
	if err := s.snapshots.SaveCursor(s.conversationID, s.cursor); err != nil {
		log.Error().Err(err).Str("conversation_id", s.conversationID).Msg("failed to snapshot cursor")
	}
	if err := s.snapshots.SaveEditHistory(s.conversationID, s.editHistory); err != nil {
		log.Error().Err(err).Str("conversation_id", s.conversationID).Msg("failed to snapshot edit history")
	}
}

func appendIndex(indices []int, index int) []int {
	for _, i := range indices {
		if i == index {
			return append([]int{}, indices...)
		}
	}
	return append(append([]int{}, indices...), index)
}

package versions

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-go-golems/palimpsest/pkg/backend"
	"github.com/go-go-golems/palimpsest/pkg/chat"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrEditInProgress is returned when an edit is attempted while another edit
// is still in flight. Edits are single-flight: the second attempt is
// rejected, not queued.
var ErrEditInProgress = errors.New("an edit is already in progress")

// Engine turns a user's edit of a historical message into a new version and
// drives backend regeneration.
type Engine struct {
	registry *Registry
	service  backend.Service
	notifier backend.Notifier

	// Single-writer constraint: one edit in flight across the engine. This
	// is global rather than per message on purpose; two interleaved forks
	// would silently discard each other's versions.
	editing atomic.Bool
}

type EngineOption func(*Engine)

func WithNotifier(notifier backend.Notifier) EngineOption {
	return func(e *Engine) {
		e.notifier = notifier
	}
}

func NewEngine(registry *Registry, service backend.Service, options ...EngineOption) *Engine {
	ret := &Engine{
		registry: registry,
		service:  service,
		notifier: backend.NopNotifier{},
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

// EditMessage forks a new version with the message at messageIndex replaced
// by newContent.
//
// Editing a user message truncates the transcript at the edited message and
// asks the backend to regenerate from that point. On backend failure the fork
// is kept (not rolled back) so the user doesn't lose their edit; the failure
// is surfaced through the notifier and the returned error.
//
// Editing an assistant message rewrites the reply in a forked version without
// re-querying the model.
//
// Missing store, out-of-range index and empty content are silent no-ops.
func (e *Engine) EditMessage(ctx context.Context, conversationID string, messageIndex int, newContent string) error {
	store, ok := e.registry.Get(conversationID)
	if !ok {
		return nil
	}
	if strings.TrimSpace(newContent) == "" {
		return nil
	}

	if !e.editing.CompareAndSwap(false, true) {
		e.notifier.Notify(backend.NotificationError, "An edit is already in progress")
		return ErrEditInProgress
	}
	defer func() {
		store.SetWaitingForResponse(false)
		e.editing.Store(false)
	}()

	store.SetWaitingForResponse(true)

	messages := store.CurrentMessages()
	if messageIndex < 0 || messageIndex >= len(messages) {
		return nil
	}

	edited := messages[messageIndex]
	edit := Edit{
		VersionIndex:   store.Cursor(),
		MessageIndex:   messageIndex,
		OldContent:     edited.Content,
		NewContent:     &newContent,
		Timestamp:      time.Now().Unix(),
		ConversationID: conversationID,
	}

	log.Debug().
		Str("conversation_id", conversationID).
		Int("message_index", messageIndex).
		Str("role", string(edited.Role)).
		Msg("editing message")

	if edited.Role == chat.RoleUser {
		// Truncate at the edit point; the regenerated reply replaces
		// everything that followed.
		truncated := cloneMessages(messages[:messageIndex+1])
		truncated[messageIndex].Content = newContent
		store.fork(truncated, edit, nil)

		editIndex := messageIndex
		if _, err := e.service.SendMessage(ctx, conversationID, newContent, &editIndex); err != nil {
			e.notifier.Notify(backend.NotificationError, "Failed to update message")
			return errors.Wrap(err, "sending edited message")
		}

		if err := e.SyncWithServer(ctx, conversationID); err != nil {
			log.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to sync after edit")
		}
		return nil
	}

	// Assistant edit: correct the reply in place within the forked version.
	rewritten := cloneMessages(messages)
	rewritten[messageIndex].Content = newContent
	store.fork(rewritten, edit, nil)
	return nil
}

// DeleteLastUserMessage forks a new version that drops the most recent user
// message and everything after it, letting the user retry without keeping
// either the old prompt or its answer. No-op if no user message exists.
func (e *Engine) DeleteLastUserMessage(conversationID string) {
	store, ok := e.registry.Get(conversationID)
	if !ok {
		return
	}

	messages := store.CurrentMessages()

	lastUserIndex := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == chat.RoleUser {
			lastUserIndex = i
			break
		}
	}
	if lastUserIndex == -1 {
		return
	}

	edit := Edit{
		VersionIndex:   store.Cursor(),
		MessageIndex:   lastUserIndex,
		OldContent:     messages[lastUserIndex].Content,
		NewContent:     nil,
		Timestamp:      time.Now().Unix(),
		ConversationID: conversationID,
	}

	deletedIndex := lastUserIndex
	store.fork(messages[:lastUserIndex], edit, &deletedIndex)
}

// SendMessage appends an optimistic user message and sends it non-streaming,
// reconciling with the returned canonical conversation.
func (e *Engine) SendMessage(ctx context.Context, conversationID string, content string) error {
	store, ok := e.registry.Get(conversationID)
	if !ok {
		return nil
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}

	store.AppendMessage(chat.NewUserMessage(content, chat.WithIsNew(true)))
	store.SetWaitingForResponse(true)
	defer store.SetWaitingForResponse(false)

	conv, err := e.service.SendMessage(ctx, conversationID, content, nil)
	if err != nil {
		e.notifier.Notify(backend.NotificationError, "Failed to send message")
		return errors.Wrap(err, "sending message")
	}

	if conv != nil {
		store.ReplaceLatestMessages(chat.NormalizeAll(conv.Messages, time.Now()))
	}
	return nil
}

// SyncWithServer fetches the canonical message list and overwrites only the
// latest version's messages, after normalizing the wire shape. Historical
// versions are never disturbed.
func (e *Engine) SyncWithServer(ctx context.Context, conversationID string) error {
	store, ok := e.registry.Get(conversationID)
	if !ok {
		return nil
	}

	conv, err := e.service.GetConversation(ctx, conversationID)
	if err != nil {
		return errors.Wrap(err, "fetching conversation")
	}

	messages := chat.NormalizeAll(conv.Messages, time.Now())
	if len(messages) == 0 {
		return nil
	}

	store.ReplaceLatestMessages(messages)
	return nil
}

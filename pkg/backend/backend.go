// Package backend declares the boundary contracts the version store consumes.
// Transport implementations (HTTP, SDKs) live with the caller; the core only
// ever sees these interfaces.
package backend

import (
	"context"

	"github.com/go-go-golems/palimpsest/pkg/chat"
	"github.com/rs/zerolog/log"
)

// Conversation is the server-canonical view of one chat. Messages are kept in
// their raw wire shape; normalization happens at the reconciliation boundary.
type Conversation struct {
	ID        string            `json:"id"`
	ModelID   string            `json:"modelId,omitempty"`
	AvatarIDs []string          `json:"avatarIds,omitempty"`
	Messages  []chat.RawMessage `json:"messages"`
}

// Service is the send/fetch surface of the generation backend.
type Service interface {
	// GetConversation fetches the canonical message list for a conversation.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// SendMessage sends content non-streaming. A non-nil editIndex signals
	// regeneration-from-point semantics: the backend regenerates from that
	// message instead of appending.
	SendMessage(ctx context.Context, conversationID string, content string, editIndex *int) (*Conversation, error)

	// SendMessageStream sends content and delivers the reply incrementally.
	// onChunk is invoked zero or more times with arbitrary-sized text
	// fragments. The returned string is the final complete text, which may
	// legitimately be empty when the transport gives no final-payload
	// guarantee. Cancellation goes through ctx.
	SendMessageStream(ctx context.Context, conversationID string, content string, onChunk func(string)) (string, error)
}

type NotificationKind string

const (
	NotificationInfo    NotificationKind = "info"
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// Notifier is a fire-and-forget sink for user-visible notices (toasts in the
// original UI). Callers never block on it.
type Notifier interface {
	Notify(kind NotificationKind, text string)
}

type NopNotifier struct{}

func (NopNotifier) Notify(NotificationKind, string) {}

var _ Notifier = NopNotifier{}

// LogNotifier routes notifications to the structured log, for headless use.
type LogNotifier struct{}

func (LogNotifier) Notify(kind NotificationKind, text string) {
	switch kind {
	case NotificationError:
		log.Error().Str("notification", string(kind)).Msg(text)
	default:
		log.Info().Str("notification", string(kind)).Msg(text)
	}
}

var _ Notifier = LogNotifier{}

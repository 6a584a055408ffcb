package chat

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn of a conversation transcript.
//
// Content is mutable only while Streaming is true, in which case the message
// must be the trailing assistant message of its version and content may only
// be appended to, never replaced (except by the final authoritative payload
// on stream completion).
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`

	// Streaming marks a trailing assistant message whose content is still
	// being appended to by an active stream.
	Streaming bool `json:"streaming,omitempty"`
	// IsNew marks a locally appended message that has not yet been
	// reconciled against the server's canonical message list.
	IsNew bool `json:"isNew,omitempty"`

	// Normalized from the wire shape, which carried both casings (ID/id,
	// URL/url). Optional.
	ID            string `json:"id,omitempty"`
	AttachmentURL string `json:"url,omitempty"`
}

type MessageOption func(*Message)

func WithTimestamp(ts int64) MessageOption {
	return func(m *Message) {
		m.Timestamp = ts
	}
}

func WithStreaming(streaming bool) MessageOption {
	return func(m *Message) {
		m.Streaming = streaming
	}
}

func WithIsNew(isNew bool) MessageOption {
	return func(m *Message) {
		m.IsNew = isNew
	}
}

func WithMessageID(id string) MessageOption {
	return func(m *Message) {
		m.ID = id
	}
}

func NewMessage(role Role, content string, options ...MessageOption) Message {
	ret := Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().Unix(),
	}

	for _, option := range options {
		option(&ret)
	}

	return ret
}

func NewUserMessage(content string, options ...MessageOption) Message {
	return NewMessage(RoleUser, content, options...)
}

func NewAssistantMessage(content string, options ...MessageOption) Message {
	return NewMessage(RoleAssistant, content, options...)
}

// SameAs reports whether two messages are the same turn for the purpose of
// duplicate suppression. Server sync and local optimistic appends can race,
// so identity is (role, content, timestamp) rather than pointer identity.
func (m Message) SameAs(other Message) bool {
	return m.Role == other.Role &&
		m.Content == other.Content &&
		m.Timestamp == other.Timestamp
}

package chat

import (
	"time"
)

// RawMessage is the duck-typed wire shape of a message as returned by the
// backend. Historical payloads use two casing conventions for the same fields
// (ID/id, URL/url), a legacy isUser boolean instead of role, and sometimes
// omit content or timestamp entirely. Normalization happens once here, at the
// boundary, so none of the dual-casing leaks into core logic.
type RawMessage map[string]interface{}

// Normalize converts a raw wire message into the canonical Message schema.
// Missing content defaults to the empty string, a missing role is derived
// from the legacy isUser field (absent isUser means assistant), and a missing
// timestamp defaults to now.
func (r RawMessage) Normalize(now time.Time) Message {
	msg := Message{
		Content:   stringField(r, "content"),
		Timestamp: now.Unix(),
	}

	if role, ok := r["role"].(string); ok && role != "" {
		msg.Role = Role(role)
	} else if isUser, ok := r["isUser"].(bool); ok && isUser {
		msg.Role = RoleUser
	} else {
		msg.Role = RoleAssistant
	}

	if ts, ok := numberField(r, "timestamp"); ok {
		msg.Timestamp = ts
	}

	msg.ID = firstStringField(r, "id", "ID")
	msg.AttachmentURL = firstStringField(r, "url", "URL")

	if streaming, ok := r["streaming"].(bool); ok {
		msg.Streaming = streaming
	}

	return msg
}

// NormalizeAll normalizes a server message list in order.
func NormalizeAll(raw []RawMessage, now time.Time) []Message {
	messages := make([]Message, 0, len(raw))
	for _, r := range raw {
		messages = append(messages, r.Normalize(now))
	}
	return messages
}

func stringField(r RawMessage, key string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return ""
}

func firstStringField(r RawMessage, keys ...string) string {
	for _, key := range keys {
		if s, ok := r[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func numberField(r RawMessage, key string) (int64, bool) {
	switch v := r[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

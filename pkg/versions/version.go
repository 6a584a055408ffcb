// Package versions implements the conversation version store: a linear,
// append-only history of transcript snapshots with a cursor, forked by edits
// and truncations. Forking from a non-tip version discards the redo branch
// first; the store is a stack, not a tree.
package versions

import (
	"github.com/go-go-golems/palimpsest/pkg/chat"
)

// Edit records one content change applied to derive a version from its
// predecessor. A nil NewContent signifies a deletion (delete-last-user-message).
type Edit struct {
	VersionIndex   int     `json:"versionIndex"`
	MessageIndex   int     `json:"messageIndex"`
	OldContent     string  `json:"oldContent"`
	NewContent     *string `json:"newContent"`
	Timestamp      int64   `json:"timestamp"`
	ConversationID string  `json:"conversationId,omitempty"`
}

// Version is one immutable snapshot of a conversation's message list plus
// metadata about how it was derived from the previous snapshot. Message
// content is never rewritten in place; the only allowed in-place mutation is
// appending characters to a trailing streaming message.
type Version struct {
	ID        int            `json:"id"`
	Messages  []chat.Message `json:"messages"`
	Timestamp int64          `json:"timestamp"`

	// EditedMessageIndices is the display state restored when navigating
	// back to this version.
	EditedMessageIndices []int `json:"editedMessageIndices"`
	// Edits accumulates the edit records from the parent version.
	Edits []Edit `json:"edits"`
	// DeletedMessageIndex is set on versions produced by
	// delete-last-user-message.
	DeletedMessageIndex *int   `json:"deletedMessageIndex,omitempty"`
	ConversationID      string `json:"conversationId"`
}

// EditedIndices returns the unique message indices touched by the edits
// accumulated on this version, in first-edit order.
func (v Version) EditedIndices() []int {
	seen := make(map[int]bool, len(v.Edits))
	var indices []int
	for _, edit := range v.Edits {
		if seen[edit.MessageIndex] {
			continue
		}
		seen[edit.MessageIndex] = true
		indices = append(indices, edit.MessageIndex)
	}
	return indices
}

func cloneMessages(messages []chat.Message) []chat.Message {
	out := make([]chat.Message, len(messages))
	copy(out, messages)
	return out
}

package backend

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/palimpsest/pkg/chat"
	"github.com/pkg/errors"
)

// FakeService is an in-memory Service used by tests and the demo command.
// Replies are scripted: each send pops the next reply, and streaming sends
// deliver it in the configured chunks.
type FakeService struct {
	mu sync.Mutex

	conversations map[string]*Conversation
	replies       []string
	chunks        [][]string

	// SendErr, when set, fails the next SendMessage call.
	SendErr error
	// StreamErr, when set, fails the streaming call after all chunks have
	// been delivered.
	StreamErr error
	// ChunkDelay throttles chunk delivery, for the demo command.
	ChunkDelay time.Duration

	// SentEdits records the editIndex of every SendMessage call.
	SentEdits []*int
}

func NewFakeService() *FakeService {
	return &FakeService{
		conversations: make(map[string]*Conversation),
	}
}

func (f *FakeService) AddConversation(conv *Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[conv.ID] = conv
}

func (f *FakeService) QueueReply(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
}

func (f *FakeService) QueueChunks(chunks ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, chunks)
}

func (f *FakeService) GetConversation(_ context.Context, id string) (*Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	conv, ok := f.conversations[id]
	if !ok {
		return nil, errors.Errorf("conversation %s not found", id)
	}
	return conv, nil
}

func (f *FakeService) SendMessage(_ context.Context, conversationID string, content string, editIndex *int) (*Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SentEdits = append(f.SentEdits, editIndex)

	if f.SendErr != nil {
		err := f.SendErr
		f.SendErr = nil
		return nil, err
	}

	conv, ok := f.conversations[conversationID]
	if !ok {
		return nil, errors.Errorf("conversation %s not found", conversationID)
	}

	reply := "ok"
	if len(f.replies) > 0 {
		reply = f.replies[0]
		f.replies = f.replies[1:]
	}

	now := time.Now().Unix()
	if editIndex != nil && *editIndex < len(conv.Messages) {
		conv.Messages = conv.Messages[:*editIndex]
	}
	conv.Messages = append(conv.Messages,
		chat.RawMessage{"role": "user", "content": content, "timestamp": now},
		chat.RawMessage{"role": "assistant", "content": reply, "timestamp": now},
	)

	return conv, nil
}

func (f *FakeService) SendMessageStream(ctx context.Context, conversationID string, content string, onChunk func(string)) (string, error) {
	f.mu.Lock()
	var script []string
	if len(f.chunks) > 0 {
		script = f.chunks[0]
		f.chunks = f.chunks[1:]
	}
	streamErr := f.StreamErr
	f.StreamErr = nil
	delay := f.ChunkDelay
	f.mu.Unlock()

	full := ""
	for _, chunk := range script {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		} else if err := ctx.Err(); err != nil {
			return "", err
		}
		onChunk(chunk)
		full += chunk
	}

	if streamErr != nil {
		return "", streamErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if conv, ok := f.conversations[conversationID]; ok {
		now := time.Now().Unix()
		conv.Messages = append(conv.Messages,
			chat.RawMessage{"role": "user", "content": content, "timestamp": now},
			chat.RawMessage{"role": "assistant", "content": full, "timestamp": now},
		)
	}

	return full, nil
}

var _ Service = (*FakeService)(nil)

package streaming

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/palimpsest/pkg/backend"
	"github.com/go-go-golems/palimpsest/pkg/events"
	"github.com/go-go-golems/palimpsest/pkg/versions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturingSink) PublishEvent(e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capturingSink) types() []events.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	var types []events.EventType
	for _, e := range c.events {
		types = append(types, e.Type())
	}
	return types
}

func newTestReconciler(t *testing.T) (*Reconciler, *versions.Store, *capturingSink) {
	t.Helper()
	registry := versions.NewRegistry()
	store := registry.Initialize("conv-1", nil)
	sink := &capturingSink{}
	return NewReconciler(store, WithSink(sink)), store, sink
}

func TestChunksAccumulateRegardlessOfBoundaries(t *testing.T) {
	r, store, sink := newTestReconciler(t)

	require.NoError(t, r.Begin("hi"))
	for _, chunk := range []string{"Hel", "lo wor", "ld"} {
		r.AppendChunk(chunk)
	}
	r.Finish("")

	messages := store.CurrentMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, "Hello world", messages[1].Content)
	assert.False(t, messages[1].Streaming)

	assert.Equal(t, []events.EventType{
		events.EventTypeStart,
		events.EventTypePartialCompletion,
		events.EventTypePartialCompletion,
		events.EventTypePartialCompletion,
		events.EventTypeFinal,
	}, sink.types())
}

func TestFinalPayloadReplacesAccumulation(t *testing.T) {
	r, store, _ := newTestReconciler(t)

	require.NoError(t, r.Begin("hi"))
	r.AppendChunk("Hel")
	r.Finish("Hello world")

	messages := store.CurrentMessages()
	assert.Equal(t, "Hello world", messages[1].Content)
}

func TestCancelPreservesPartialOutput(t *testing.T) {
	r, store, sink := newTestReconciler(t)

	require.NoError(t, r.Begin("hi"))
	r.AppendChunk("partial")
	r.Cancel()

	messages := store.CurrentMessages()
	assert.Equal(t, "partial [Cancelled]", messages[1].Content)
	assert.False(t, messages[1].Streaming)
	assert.Contains(t, sink.types(), events.EventTypeInterrupt)
	assert.False(t, r.Active())
}

func TestFailAppendsDiagnosticMarker(t *testing.T) {
	r, store, sink := newTestReconciler(t)

	require.NoError(t, r.Begin("hi"))
	r.AppendChunk("partial")
	r.Fail(assert.AnError)

	messages := store.CurrentMessages()
	assert.Equal(t, "partial [Error: Failed to complete response]", messages[1].Content)
	assert.Contains(t, sink.types(), events.EventTypeError)
}

func TestSecondBeginIsRejected(t *testing.T) {
	r, _, _ := newTestReconciler(t)

	require.NoError(t, r.Begin("hi"))
	assert.ErrorIs(t, r.Begin("again"), versions.ErrStreamActive)
}

func TestSendHappyPath(t *testing.T) {
	r, store, _ := newTestReconciler(t)

	svc := backend.NewFakeService()
	svc.AddConversation(&backend.Conversation{ID: "conv-1"})
	svc.QueueChunks("Hel", "lo wor", "ld")

	fullText, err := Send(context.Background(), svc, r, nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", fullText)

	messages := store.CurrentMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, "hi", messages[0].Content)
	assert.Equal(t, "Hello world", messages[1].Content)
	assert.False(t, r.Active())
}

func TestSendTransportError(t *testing.T) {
	r, store, _ := newTestReconciler(t)

	svc := backend.NewFakeService()
	svc.AddConversation(&backend.Conversation{ID: "conv-1"})
	svc.QueueChunks("par", "tial")
	svc.StreamErr = assert.AnError

	notifier := &recordingNotifier{}
	_, err := Send(context.Background(), svc, r, notifier, "hi")
	require.Error(t, err)

	messages := store.CurrentMessages()
	assert.Equal(t, "partial [Error: Failed to complete response]", messages[1].Content)
	assert.Contains(t, notifier.all(), "error: Failed to stream message")
}

func TestSendCancellation(t *testing.T) {
	r, store, _ := newTestReconciler(t)

	svc := backend.NewFakeService()
	svc.AddConversation(&backend.Conversation{ID: "conv-1"})
	svc.QueueChunks("one", "two", "three")
	svc.ChunkDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(75 * time.Millisecond)
		cancel()
	}()

	_, err := Send(ctx, svc, r, nil, "hi")
	require.ErrorIs(t, err, context.Canceled)

	messages := store.CurrentMessages()
	require.Len(t, messages, 2)
	last := messages[1]
	assert.False(t, last.Streaming, "cancellation must leave a finalized trailing message")
	assert.Contains(t, last.Content, "[Cancelled]")
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []string
}

func (n *recordingNotifier) Notify(kind backend.NotificationKind, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, string(kind)+": "+text)
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.notices...)
}

package streaming

import (
	"context"
	"sync"

	"github.com/go-go-golems/palimpsest/pkg/backend"
	"github.com/go-go-golems/palimpsest/pkg/events"
	"github.com/go-go-golems/palimpsest/pkg/versions"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	cancelledSuffix   = " [Cancelled]"
	errorSuffixPrefix = " [Error: "
	errorSuffixClose  = "]"
)

// Reconciler incrementally appends arriving chunks to the in-flight assistant
// message of a conversation's active version. It assumes single-writer access
// to the trailing message: one stream per conversation at a time, enforced at
// Begin.
type Reconciler struct {
	mu sync.Mutex

	store *versions.Store
	sink  EventSink

	active   bool
	streamID uuid.UUID
}

type ReconcilerOption func(*Reconciler)

func WithSink(sink EventSink) ReconcilerOption {
	return func(r *Reconciler) {
		r.sink = sink
	}
}

func NewReconciler(store *versions.Store, options ...ReconcilerOption) *Reconciler {
	ret := &Reconciler{
		store: store,
		sink:  NewNullSink(),
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

func (r *Reconciler) metadata() events.EventMetadata {
	return events.EventMetadata{
		StreamID:       r.streamID,
		ConversationID: r.store.ConversationID(),
	}
}

// Begin opens a stream: the optimistic user message and an empty streaming
// assistant placeholder are appended immediately, before any chunk arrives.
func (r *Reconciler) Begin(userContent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return versions.ErrStreamActive
	}

	if err := r.store.BeginStreaming(userContent); err != nil {
		return err
	}

	r.active = true
	r.streamID = uuid.New()

	log.Debug().
		Str("conversation_id", r.store.ConversationID()).
		Str("stream_id", r.streamID.String()).
		Msg("stream started")

	r.publish(events.NewStartEvent(r.metadata()))
	return nil
}

// AppendChunk concatenates one transport chunk onto the trailing assistant
// message. Chunk boundaries are arbitrary; content is only ever appended,
// never replaced. Chunk appends are not individually persisted.
func (r *Reconciler) AppendChunk(delta string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	completion, ok := r.store.AppendStreamDelta(delta)
	if !ok {
		return
	}

	r.publish(events.NewPartialCompletionEvent(r.metadata(), delta, completion))
}

// Finish completes the stream. A non-empty final payload replaces the
// accumulated content; otherwise the accumulation stands.
func (r *Reconciler) Finish(finalText string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return
	}

	content, ok := r.store.FinishStreaming(finalText)
	if ok {
		r.publish(events.NewFinalEvent(r.metadata(), content))
	}
	r.active = false
}

// Cancel finalizes the stream after an explicit abort. Partial output is
// preserved and visibly marked, not thrown away.
func (r *Reconciler) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return
	}

	content, ok := r.store.AbortStreaming(cancelledSuffix)
	if ok {
		r.publish(events.NewInterruptEvent(r.metadata(), content))
	}
	r.active = false

	log.Debug().
		Str("conversation_id", r.store.ConversationID()).
		Str("stream_id", r.streamID.String()).
		Msg("stream cancelled")
}

// Fail finalizes the stream after a transport error, keeping partial content
// with an inline diagnostic marker.
func (r *Reconciler) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return
	}

	if _, ok := r.store.AbortStreaming(errorSuffixPrefix + "Failed to complete response" + errorSuffixClose); ok {
		r.publish(events.NewErrorEvent(r.metadata(), err))
	}
	r.active = false

	log.Warn().
		Err(err).
		Str("conversation_id", r.store.ConversationID()).
		Msg("stream failed")
}

// Active reports whether a stream is currently in flight.
func (r *Reconciler) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Reconciler) publish(e events.Event) {
	if err := r.sink.PublishEvent(e); err != nil {
		log.Warn().Err(err).Str("event_type", string(e.Type())).Msg("failed to publish stream event")
	}
}

// Send drives one full streaming exchange: it opens the stream, forwards the
// backend's chunks into the reconciler, and finalizes on completion,
// cancellation or error. Cancellation goes through ctx and leaves the store
// in a valid, displayable state.
func Send(ctx context.Context, service backend.Service, r *Reconciler, notifier backend.Notifier, content string) (string, error) {
	if notifier == nil {
		notifier = backend.NopNotifier{}
	}

	if err := r.Begin(content); err != nil {
		return "", err
	}

	fullText, err := service.SendMessageStream(ctx, r.store.ConversationID(), content, r.AppendChunk)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			r.Cancel()
			return "", err
		}
		r.Fail(err)
		notifier.Notify(backend.NotificationError, "Failed to stream message")
		return "", errors.Wrap(err, "streaming message")
	}

	r.Finish(fullText)
	return fullText, nil
}

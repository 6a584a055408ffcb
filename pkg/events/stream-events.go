package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeStart to EventTypeFinal cover the lifecycle of one streamed
	// assistant reply.
	EventTypeStart             EventType = "start"
	EventTypePartialCompletion EventType = "partial"
	EventTypeFinal             EventType = "final"

	EventTypeError     EventType = "error"
	EventTypeInterrupt EventType = "interrupt"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// EventMetadata identifies which conversation and stream an event belongs to.
type EventMetadata struct {
	StreamID       uuid.UUID `json:"stream_id"`
	ConversationID string    `json:"conversation_id"`
	VersionID      int       `json:"version_id,omitempty"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("stream_id", em.StreamID.String())
	e.Str("conversation_id", em.ConversationID)
	if em.VersionID != 0 {
		e.Int("version_id", em.VersionID)
	}
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// raw JSON the event was deserialized from, see NewEventFromJson
	payload []byte
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

var _ Event = &EventImpl{}

type EventStreamStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventStreamStart {
	return &EventStreamStart{
		EventImpl: EventImpl{
			Type_:     EventTypeStart,
			Metadata_: metadata,
		},
	}
}

var _ Event = &EventStreamStart{}

// EventPartialCompletion carries one transport chunk. Delta is the chunk as
// delivered (arbitrary boundaries); Completion is the accumulated text so far.
type EventPartialCompletion struct {
	EventImpl
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

func NewPartialCompletionEvent(metadata EventMetadata, delta string, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl: EventImpl{
			Type_:     EventTypePartialCompletion,
			Metadata_: metadata,
		},
		Delta:      delta,
		Completion: completion,
	}
}

var _ Event = &EventPartialCompletion{}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{
			Type_:     EventTypeFinal,
			Metadata_: metadata,
		},
		Text: text,
	}
}

var _ Event = &EventFinal{}

// EventInterrupt is published when a stream is cancelled; Text is the partial
// content preserved at the point of cancellation.
type EventInterrupt struct {
	EventImpl
	Text string `json:"text"`
}

func NewInterruptEvent(metadata EventMetadata, text string) *EventInterrupt {
	return &EventInterrupt{
		EventImpl: EventImpl{
			Type_:     EventTypeInterrupt,
			Metadata_: metadata,
		},
		Text: text,
	}
}

var _ Event = &EventInterrupt{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl: EventImpl{
			Type_:     EventTypeError,
			Metadata_: metadata,
		},
		ErrorString: err.Error(),
	}
}

var _ Event = &EventError{}

// NewEventFromJson deserializes an event published on the bus back into its
// concrete type, keyed by the type field.
func NewEventFromJson(b []byte) (Event, error) {
	var hdr struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, err
	}

	switch hdr.Type {
	case EventTypeStart:
		return decodeEvent[EventStreamStart](b)
	case EventTypePartialCompletion:
		return decodeEvent[EventPartialCompletion](b)
	case EventTypeFinal:
		return decodeEvent[EventFinal](b)
	case EventTypeInterrupt:
		return decodeEvent[EventInterrupt](b)
	case EventTypeError:
		return decodeEvent[EventError](b)
	default:
		return nil, fmt.Errorf("unknown event type %q", hdr.Type)
	}
}

func decodeEvent[T any, PT interface {
	*T
	Event
}](b []byte) (Event, error) {
	e := PT(new(T))
	if err := json.Unmarshal(b, e); err != nil {
		return nil, err
	}
	if setter, ok := any(e).(interface{ SetPayload([]byte) }); ok {
		setter.SetPayload(b)
	}
	return e, nil
}

// SetPayload stores the raw JSON payload on the event implementation.
// This is used by NewEventFromJson and external decoders.
func (e *EventImpl) SetPayload(b []byte) {
	e.payload = b
}

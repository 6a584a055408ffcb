package streaming

import (
	"github.com/go-go-golems/palimpsest/pkg/events"
)

// NullSink discards all events.
type NullSink struct{}

func NewNullSink() *NullSink {
	return &NullSink{}
}

func (n *NullSink) PublishEvent(events.Event) error {
	return nil
}

var _ EventSink = (*NullSink)(nil)

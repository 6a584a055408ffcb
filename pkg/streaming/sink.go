// Package streaming materializes streamed assistant replies into the version
// store incrementally, without waiting for completion, and publishes the
// stream lifecycle as events.
package streaming

import (
	"github.com/go-go-golems/palimpsest/pkg/events"
)

// EventSink receives the lifecycle events of a stream. Sinks are best-effort;
// the reconciler logs publish failures and keeps going.
type EventSink interface {
	PublishEvent(e events.Event) error
}

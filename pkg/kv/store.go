// Package kv provides the injected key-value store behind snapshot
// persistence, with in-memory, file-backed and redis implementations, plus
// the Snapshots adapter that serializes version-store state into it.
package kv

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get for missing keys.
var ErrNotFound = errors.New("key not found")

// Store is a minimal durable key-value store. The version store treats it as
// last-writer-wins per key; there is no cross-process coordination.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

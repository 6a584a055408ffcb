// Package avatars provides an explicit read-through cache for avatar
// metadata. It replaces the original ad hoc window-level lookup table with an
// object that is passed to the components that need it and has defined
// invalidation on avatar list reload.
package avatars

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Avatar is the metadata the chat surface needs for attribution.
type Avatar struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"url,omitempty"`
}

// Loader fetches the full avatar list from the backing service.
type Loader func(ctx context.Context) ([]Avatar, error)

// Cache is a read-through cache over a Loader. The first lookup populates the
// whole cache; Invalidate drops it so the next lookup reloads.
type Cache struct {
	mu     sync.RWMutex
	byID   map[string]Avatar
	loader Loader
	loaded bool
}

func NewCache(loader Loader) *Cache {
	return &Cache{
		byID:   make(map[string]Avatar),
		loader: loader,
	}
}

// Get looks up an avatar by id, loading the avatar list on first use.
func (c *Cache) Get(ctx context.Context, id string) (Avatar, bool, error) {
	c.mu.RLock()
	if c.loaded {
		avatar, ok := c.byID[id]
		c.mu.RUnlock()
		return avatar, ok, nil
	}
	c.mu.RUnlock()

	if err := c.Reload(ctx); err != nil {
		return Avatar{}, false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	avatar, ok := c.byID[id]
	return avatar, ok, nil
}

// All returns every cached avatar, loading on first use.
func (c *Cache) All(ctx context.Context) ([]Avatar, error) {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()

	if !loaded {
		if err := c.Reload(ctx); err != nil {
			return nil, err
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Avatar, 0, len(c.byID))
	for _, avatar := range c.byID {
		out = append(out, avatar)
	}
	return out, nil
}

// Reload replaces the cache contents from the loader.
func (c *Cache) Reload(ctx context.Context) error {
	avatars, err := c.loader(ctx)
	if err != nil {
		return errors.Wrap(err, "loading avatars")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID = make(map[string]Avatar, len(avatars))
	for _, avatar := range avatars {
		c.byID[avatar.ID] = avatar
	}
	c.loaded = true

	log.Debug().Int("avatar_count", len(avatars)).Msg("avatar cache reloaded")
	return nil
}

// Invalidate drops the cache; the next lookup goes back to the loader.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID = make(map[string]Avatar)
	c.loaded = false
}

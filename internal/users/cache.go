package users

import (
	"sync"
	"time"
)

// handleCache holds resolved handles until they expire. Unknown users are
// never stored, so a later sign-up is picked up on the next lookup.
type handleCache struct {
	mu      sync.RWMutex
	handles map[string]string
	expiry  map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

func newHandleCache(ttl time.Duration) *handleCache {
	return &handleCache{
		handles: make(map[string]string),
		expiry:  make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *handleCache) get(id string) (string, bool) {
	if c.ttl <= 0 {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	exp, ok := c.expiry[id]
	if !ok || c.now().After(exp) {
		return "", false
	}
	return c.handles[id], true
}

func (c *handleCache) set(id, handle string) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles[id] = handle
	c.expiry[id] = c.now().Add(c.ttl)
}

// invalidate drops a cached handle, e.g. after the user renames.
func (c *handleCache) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handles, id)
	delete(c.expiry, id)
}

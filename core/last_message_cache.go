package core

import (
	"context"
	"sync"
	"time"
)

type lastMessageEntry struct {
	message  *Message
	cachedAt time.Time
}

// LastMessageCache is a read-through cache over MessageStore.LastRoomMessage
// keyed by room, used for conversation-list previews. Entries younger than
// the freshness window are served from memory; message creation refreshes
// the entry for its room, so the store lookup is mainly hit for rooms with
// no recent send activity. A periodic sweep evicts stale entries to bound
// memory.
type LastMessageCache struct {
	store   MessageStore
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]lastMessageEntry
}

func NewLastMessageCache(store MessageStore, ttl time.Duration) *LastMessageCache {
	return &LastMessageCache{
		store:   store,
		ttl:     ttl,
		entries: make(map[string]lastMessageEntry),
	}
}

// Get returns the most recent message of a room, from cache when fresh. A
// room with no messages yields nil; the empty result is cached too.
func (c *LastMessageCache) Get(ctx context.Context, room string) (*Message, error) {
	c.mu.RLock()
	entry, ok := c.entries[room]
	c.mu.RUnlock()
	if ok && time.Since(entry.cachedAt) < c.ttl {
		return entry.message, nil
	}

	message, err := c.store.LastRoomMessage(ctx, room)
	if err != nil {
		return nil, err
	}
	c.Put(room, message)
	return message, nil
}

// Put refreshes the cache entry for a room, called write-through on every
// newly created message.
func (c *LastMessageCache) Put(room string, message *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[room] = lastMessageEntry{message: message, cachedAt: time.Now()}
}

// Invalidate drops the entry for a room, used when the cached message is
// deleted.
func (c *LastMessageCache) Invalidate(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, room)
}

func (c *LastMessageCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for room, entry := range c.entries {
		if now.Sub(entry.cachedAt) >= c.ttl {
			delete(c.entries, room)
		}
	}
}

// StartSweeper evicts expired entries every interval until ctx is done.
func (c *LastMessageCache) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

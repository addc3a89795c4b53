package service

import (
	"context"
	"sync"
	"time"
)

// Outcome is a captured response: status, content type and the body bytes that
// must be replayed verbatim.
type Outcome struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// OutcomeCache accelerates replay lookups in front of the record store. A miss
// is never authoritative; callers must fall through to the store.
type OutcomeCache interface {
	Get(ctx context.Context, key string) (Outcome, bool, error)
	Put(ctx context.Context, key string, outcome Outcome, ttl time.Duration) error
}

type NoopOutcomeCache struct{}

func NewNoopOutcomeCache() *NoopOutcomeCache { return &NoopOutcomeCache{} }

func (c *NoopOutcomeCache) Get(context.Context, string) (Outcome, bool, error) {
	return Outcome{}, false, nil
}

func (c *NoopOutcomeCache) Put(context.Context, string, Outcome, time.Duration) error {
	return nil
}

type outcomeCacheEntry struct {
	outcome   Outcome
	expiresAt time.Time
}

type InMemoryOutcomeCache struct {
	mu      sync.RWMutex
	entries map[string]outcomeCacheEntry
}

func NewInMemoryOutcomeCache() *InMemoryOutcomeCache {
	return &InMemoryOutcomeCache{entries: map[string]outcomeCacheEntry{}}
}

func (c *InMemoryOutcomeCache) Get(_ context.Context, key string) (Outcome, bool, error) {
	now := time.Now().UTC()
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Outcome{}, false, nil
	}
	if now.After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return Outcome{}, false, nil
	}
	outcome := entry.outcome
	outcome.Body = append([]byte(nil), entry.outcome.Body...)
	return outcome, true, nil
}

func (c *InMemoryOutcomeCache) Put(_ context.Context, key string, outcome Outcome, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	stored := outcome
	stored.Body = append([]byte(nil), outcome.Body...)
	c.mu.Lock()
	c.entries[key] = outcomeCacheEntry{outcome: stored, expiresAt: time.Now().UTC().Add(ttl)}
	c.mu.Unlock()
	return nil
}

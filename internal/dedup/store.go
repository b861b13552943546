// Package dedup suppresses repeated delivery of the same inbound event.
// Slack retries event deliveries aggressively, so the handler records every
// event id it accepts and skips ids it has seen within the TTL window.
package dedup

import (
	"strings"
	"sync"
	"time"
)

const DefaultTTL = 5 * time.Minute

// Store is the minimal API the event handler needs. A nil Store fails open:
// every event is treated as new rather than silently dropped.
type Store interface {
	Seen(id string) bool
	Mark(id string)
	Sweep()
}

// MemoryStore keeps first-seen timestamps in a mutex-guarded map. Expired
// entries are purged lazily on Mark; there is no background timer.
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	nowFn     func() time.Time
	firstSeen map[string]time.Time
}

type MemoryStoreOptions struct {
	TTL time.Duration
	Now func() time.Time
}

func NewMemoryStore(opts MemoryStoreOptions) *MemoryStore {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MemoryStore{
		ttl:       ttl,
		nowFn:     nowFn,
		firstSeen: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Seen(id string) bool {
	if s == nil {
		return false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	first, ok := s.firstSeen[id]
	if !ok {
		return false
	}
	return s.nowFn().Sub(first) < s.ttl
}

func (s *MemoryStore) Mark(id string) {
	if s == nil {
		return
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s.mu.Lock()
	s.sweepLocked()
	s.firstSeen[id] = s.nowFn()
	s.mu.Unlock()
}

func (s *MemoryStore) Sweep() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.sweepLocked()
	s.mu.Unlock()
}

func (s *MemoryStore) sweepLocked() {
	now := s.nowFn()
	for id, first := range s.firstSeen {
		if now.Sub(first) >= s.ttl {
			delete(s.firstSeen, id)
		}
	}
}

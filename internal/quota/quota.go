// Package quota implements the optional free-message allowance for
// unauthenticated users.
//
// This is a product policy, not core behavior: the limit is configurable and
// a limit of zero disables the whole mechanism. Counts live in memory, keyed
// by the guest cookie ID — losing them on restart just resets the allowance,
// which is acceptable for a throttle.
package quota

import (
	"sync"
	"time"
)

// Store counts messages per guest and enforces a fixed allowance.
// Stale entries are evicted by a background loop so the map cannot grow
// without bound.
type Store struct {
	mu              sync.Mutex
	limit           int
	entries         map[string]*entry
	cleanupInterval time.Duration
	maxIdle         time.Duration
	stopCh          chan struct{}
}

type entry struct {
	count    int
	lastSeen time.Time
}

// NewStore creates a quota store allowing limit free messages per guest.
// A limit <= 0 disables the quota — Allow always returns true.
func NewStore(limit int, cleanupInterval time.Duration) *Store {
	s := &Store{
		limit:           limit,
		entries:         map[string]*entry{},
		cleanupInterval: cleanupInterval,
		maxIdle:         24 * time.Hour,
		stopCh:          make(chan struct{}),
	}
	if limit > 0 {
		go s.cleanupLoop()
	}
	return s
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-s.maxIdle)
			s.mu.Lock()
			for k, e := range s.entries {
				if e.lastSeen.Before(cutoff) {
					delete(s.entries, k)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine (useful for tests and shutdown).
func (s *Store) Stop() {
	if s.limit > 0 {
		close(s.stopCh)
	}
}

// Allow consumes one message from the guest's allowance. It returns false
// once the allowance is exhausted; a disabled store always returns true.
func (s *Store) Allow(guestID string) bool {
	if s.limit <= 0 {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[guestID]
	if !ok {
		e = &entry{}
		s.entries[guestID] = e
	}
	e.lastSeen = time.Now()

	if e.count >= s.limit {
		return false
	}
	e.count++
	return true
}

// Remaining reports how many free messages the guest has left.
func (s *Store) Remaining(guestID string) int {
	if s.limit <= 0 {
		return -1 // unlimited
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[guestID]
	if !ok {
		return s.limit
	}
	if e.count >= s.limit {
		return 0
	}
	return s.limit - e.count
}

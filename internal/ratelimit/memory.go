package ratelimit

import (
	"context"
	"sync"
	"time"
)

type clientState struct {
	requests     []time.Time // ascending
	blockedUntil time.Time
}

// MemoryStore keeps request history in process memory behind a single mutex.
type MemoryStore struct {
	mu      sync.Mutex
	clients map[string]*clientState
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clients: make(map[string]*clientState)}
}

// Admit implements Store.
func (m *MemoryStore) Admit(_ context.Context, id string, now time.Time, p Policy) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.clients[id]
	if !ok {
		st = &clientState{}
		m.clients[id] = st
	}

	if st.blockedUntil.After(now) {
		return Decision{
			Allowed:    false,
			ResetTime:  st.blockedUntil,
			RetryAfter: st.blockedUntil.Sub(now),
		}, nil
	}

	st.requests = purgeBefore(st.requests, now.Add(-p.Window))

	if p.BurstLimit > 0 && countAfter(st.requests, now.Add(-p.BurstWindow)) >= p.BurstLimit {
		st.blockedUntil = now.Add(p.BurstWindow)
		return Decision{
			Allowed:    false,
			ResetTime:  st.blockedUntil,
			RetryAfter: p.BurstWindow,
		}, nil
	}

	if len(st.requests) >= p.MaxRequests {
		reset := st.requests[0].Add(p.Window)
		return Decision{
			Allowed:    false,
			ResetTime:  reset,
			RetryAfter: reset.Sub(now) + time.Second,
		}, nil
	}

	remaining := p.MaxRequests - len(st.requests) - 1
	st.requests = append(st.requests, now)
	return Decision{
		Allowed:   true,
		Remaining: remaining,
		ResetTime: st.requests[0].Add(p.Window),
	}, nil
}

// Block implements Store.
func (m *MemoryStore) Block(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.clients[id]
	if !ok {
		st = &clientState{}
		m.clients[id] = st
	}
	st.blockedUntil = until
	return nil
}

// BlockedUntil implements Store.
func (m *MemoryStore) BlockedUntil(_ context.Context, id string, now time.Time) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.clients[id]
	if !ok || !st.blockedUntil.After(now) {
		return time.Time{}, false, nil
	}
	return st.blockedUntil, true, nil
}

// Reset implements Store.
func (m *MemoryStore) Reset(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, id)
	return nil
}

// ClearAll implements Store.
func (m *MemoryStore) ClearAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients = make(map[string]*clientState)
	return nil
}

// Sweep removes identifiers with no request newer than now-idle and no active block. It returns
// the number of identifiers removed.
func (m *MemoryStore) Sweep(now time.Time, idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-idle)
	removed := 0
	for id, st := range m.clients {
		if st.blockedUntil.After(now) {
			continue
		}
		if n := len(st.requests); n > 0 && st.requests[n-1].After(cutoff) {
			continue
		}
		delete(m.clients, id)
		removed++
	}
	return removed
}

// Len returns the number of tracked identifiers
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// purgeBefore drops timestamps at or before cutoff from an ascending slice
func purgeBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

// countAfter counts timestamps strictly after cutoff in an ascending slice
func countAfter(ts []time.Time, cutoff time.Time) int {
	n := 0
	for i := len(ts) - 1; i >= 0 && ts[i].After(cutoff); i-- {
		n++
	}
	return n
}

package sanitize

import (
	"context"
	"sync"
	"time"
)

// HistoryStore remembers recent submission fingerprints per client. SeenOrRecord reports whether
// fingerprint was recorded for clientID within window and, if not, records it at now. The check
// and the record happen atomically.
type HistoryStore interface {
	SeenOrRecord(ctx context.Context, clientID, fingerprint string, now time.Time, window time.Duration) (bool, error)
}

// sweeper is implemented by history stores that keep expired entries in process memory
type sweeper interface {
	Sweep(now time.Time, window time.Duration) int
}

// MemoryHistory is an in-process HistoryStore. Clients whose fingerprints have all expired are
// dropped, at the latest one window after their last submission.
type MemoryHistory struct {
	mu        sync.Mutex
	entries   map[string]map[string]time.Time
	lastSweep time.Time
}

// NewMemoryHistory creates an empty MemoryHistory
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[string]map[string]time.Time)}
}

// SeenOrRecord implements HistoryStore.
func (h *MemoryHistory) SeenOrRecord(_ context.Context, clientID, fingerprint string, now time.Time, window time.Duration) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := now.Add(-window)
	if h.lastSweep.IsZero() {
		h.lastSweep = now
	} else if !now.Before(h.lastSweep.Add(window)) {
		h.sweepLocked(cutoff)
		h.lastSweep = now
	}

	seen, ok := h.entries[clientID]
	if !ok {
		seen = make(map[string]time.Time)
		h.entries[clientID] = seen
	}
	pruneBefore(seen, cutoff)

	if _, dup := seen[fingerprint]; dup {
		return true, nil
	}
	seen[fingerprint] = now
	return false, nil
}

// Sweep drops fingerprints recorded at or before now-window and every client left without one.
// It returns the number of clients removed.
func (h *MemoryHistory) Sweep(now time.Time, window time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSweep = now
	return h.sweepLocked(now.Add(-window))
}

func (h *MemoryHistory) sweepLocked(cutoff time.Time) int {
	removed := 0
	for id, seen := range h.entries {
		pruneBefore(seen, cutoff)
		if len(seen) == 0 {
			delete(h.entries, id)
			removed++
		}
	}
	return removed
}

func pruneBefore(seen map[string]time.Time, cutoff time.Time) {
	for fp, at := range seen {
		if !at.After(cutoff) {
			delete(seen, fp)
		}
	}
}

// Len returns the number of fingerprints currently held for clientID
func (h *MemoryHistory) Len(clientID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries[clientID])
}

// Clients returns the number of clients with history
func (h *MemoryHistory) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is an in-process sliding-window Limiter, used by tests and by
// the "check" and "bulk" CLI commands, which run without Redis. It keeps,
// per id, the list of admission
// timestamps still inside the window — the in-memory analogue of spec.md
// §4.4's "id||timestamp" entry-key encoding (here the id is the map key
// directly, letting many admissions coexist per id without overwriting each
// other, same observable contract).
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	admits map[string][]time.Time
}

// NewMemory returns a MemoryLimiter with the given limit L and window W.
func NewMemory(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		admits: make(map[string][]time.Time),
	}
}

func (m *MemoryLimiter) SetConfig(limit int, window time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
	m.window = window
}

// Check implements spec.md §4.4's four-step contract: purge entries older
// than the window, count what's left, admit or deny, and record the
// admission.
func (m *MemoryLimiter) Check(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-m.window)

	kept := purge(m.admits[id], cutoff)
	if len(kept) >= m.limit {
		m.admits[id] = kept
		return false, nil
	}

	m.admits[id] = append(kept, now)
	return true, nil
}

func (m *MemoryLimiter) Usage(_ context.Context, id string) (int, int, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.window)
	kept := purge(m.admits[id], cutoff)
	m.admits[id] = kept
	return len(kept), m.limit, m.window, nil
}

func purge(entries []time.Time, cutoff time.Time) []time.Time {
	out := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

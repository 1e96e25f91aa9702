package store

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/forecast-bot/internal/metrics"
)

const (
	DefaultWindowEntries = 10000
	DefaultWindowMaxAge  = 10 * time.Minute
)

type seenEntry struct {
	id string
	at time.Time
}

// MemoryWindow is a concurrency-safe, bounded set of recently seen message ids.
// Entries expire after maxAge and the oldest are dropped once maxEntries is reached.
type MemoryWindow struct {
	mu sync.Mutex

	seen  map[string]time.Time
	order []seenEntry // insertion order, oldest first

	maxEntries int
	maxAge     time.Duration
	now        func() time.Time
}

// NewMemoryWindow creates a window. Non-positive limits fall back to the defaults.
func NewMemoryWindow(maxEntries int, maxAge time.Duration) *MemoryWindow {
	if maxEntries <= 0 {
		maxEntries = DefaultWindowEntries
	}
	if maxAge <= 0 {
		maxAge = DefaultWindowMaxAge
	}
	return &MemoryWindow{
		seen:       make(map[string]time.Time),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Add records id and reports whether it was new. Check and insert happen under
// one lock, so concurrent callers with the same id see exactly one true.
func (w *MemoryWindow) Add(_ context.Context, id string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.expire(now)

	if _, ok := w.seen[id]; ok {
		return false, nil
	}
	w.seen[id] = now
	w.order = append(w.order, seenEntry{id: id, at: now})

	// Enforce retention by count.
	if over := len(w.order) - w.maxEntries; over > 0 {
		for _, e := range w.order[:over] {
			delete(w.seen, e.id)
		}
		w.order = w.order[over:]
	}

	metrics.DedupWindowSize.Set(float64(len(w.order)))
	return true, nil
}

// Len returns the number of ids currently held.
func (w *MemoryWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}

// expire drops entries older than maxAge. Caller holds the lock.
func (w *MemoryWindow) expire(now time.Time) {
	cutoff := now.Add(-w.maxAge)
	i := 0
	for ; i < len(w.order); i++ {
		if w.order[i].at.After(cutoff) {
			break
		}
		delete(w.seen, w.order[i].id)
	}
	switch {
	case i == len(w.order):
		w.order = w.order[:0]
	case i > 0:
		w.order = w.order[i:]
	}
}

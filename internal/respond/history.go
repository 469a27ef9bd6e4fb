package respond

import (
	"sync"
)

// DefaultHistorySize is the execution log capacity used when none is
// configured.
const DefaultHistorySize = 1000

// History is a fixed-capacity, append-only log of terminal executions.
// When full, appending evicts the oldest record. Reads never observe a
// partially appended execution; records are frozen before they arrive.
type History struct {
	mu    sync.RWMutex
	buf   []*Execution
	head  int // index of the next write slot
	count int

	appended uint64
	evicted  uint64
}

// NewHistory creates a history store with the given capacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{
		buf: make([]*Execution, capacity),
	}
}

// Append inserts a terminal execution, evicting the oldest when full.
func (h *History) Append(exec *Execution) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == len(h.buf) {
		h.evicted++
	} else {
		h.count++
	}
	h.buf[h.head] = exec
	h.head = (h.head + 1) % len(h.buf)
	h.appended++
}

// Recent returns up to limit executions, newest first. A non-positive
// limit returns everything retained.
func (h *History) Recent(limit int) []*Execution {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.count
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]*Execution, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.head - 1 - i + len(h.buf)*2) % len(h.buf)
		out = append(out, h.buf[idx])
	}
	return out
}

// Len returns the number of retained executions.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Cap returns the history capacity.
func (h *History) Cap() int {
	return len(h.buf)
}

// Metrics returns append/evict counters for observability.
func (h *History) Metrics() HistoryMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HistoryMetrics{
		Appended: h.appended,
		Evicted:  h.evicted,
		Depth:    h.count,
		Capacity: len(h.buf),
	}
}

// HistoryMetrics holds statistics about history operations.
type HistoryMetrics struct {
	Appended uint64 `json:"appended"`
	Evicted  uint64 `json:"evicted"`
	Depth    int    `json:"depth"`
	Capacity int    `json:"capacity"`
}

package respond

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func historyExec(threatID string) *Execution {
	return &Execution{
		ID:           uuid.New(),
		PlaybookID:   "pb-1",
		PlaybookName: "Test Playbook",
		ThreatID:     threatID,
		Status:       ExecutionCompleted,
		StartedAt:    time.Now().UTC(),
		CompletedAt:  time.Now().UTC(),
	}
}

func TestNewHistory(t *testing.T) {
	t.Run("with valid capacity", func(t *testing.T) {
		h := NewHistory(50)
		if h.Cap() != 50 {
			t.Errorf("Cap() = %d, want 50", h.Cap())
		}
		if h.Len() != 0 {
			t.Errorf("Len() = %d, want 0", h.Len())
		}
	})

	t.Run("with zero capacity uses default", func(t *testing.T) {
		h := NewHistory(0)
		if h.Cap() != DefaultHistorySize {
			t.Errorf("Cap() = %d, want %d", h.Cap(), DefaultHistorySize)
		}
	})
}

func TestHistory_RecentNewestFirst(t *testing.T) {
	h := NewHistory(10)
	for i := 1; i <= 5; i++ {
		h.Append(historyExec(fmt.Sprintf("thr-%d", i)))
	}

	recent := h.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("Recent(3) len = %d, want 3", len(recent))
	}
	for i, want := range []string{"thr-5", "thr-4", "thr-3"} {
		if recent[i].ThreatID != want {
			t.Errorf("Recent(3)[%d].ThreatID = %s, want %s", i, recent[i].ThreatID, want)
		}
	}

	all := h.Recent(0)
	if len(all) != 5 {
		t.Errorf("Recent(0) len = %d, want 5", len(all))
	}
}

func TestHistory_BoundEviction(t *testing.T) {
	const capacity = 5
	h := NewHistory(capacity)

	for i := 1; i <= capacity+1; i++ {
		h.Append(historyExec(fmt.Sprintf("thr-%d", i)))
	}

	if h.Len() != capacity {
		t.Fatalf("Len() = %d, want %d", h.Len(), capacity)
	}

	recent := h.Recent(capacity)
	for _, exec := range recent {
		if exec.ThreatID == "thr-1" {
			t.Error("oldest execution should have been evicted")
		}
	}
	if recent[0].ThreatID != "thr-6" {
		t.Errorf("newest = %s, want thr-6", recent[0].ThreatID)
	}

	m := h.Metrics()
	if m.Appended != capacity+1 {
		t.Errorf("Metrics().Appended = %d, want %d", m.Appended, capacity+1)
	}
	if m.Evicted != 1 {
		t.Errorf("Metrics().Evicted = %d, want 1", m.Evicted)
	}
}

func TestHistory_ConcurrentAppend(t *testing.T) {
	h := NewHistory(100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Append(historyExec(fmt.Sprintf("thr-%d-%d", n, j)))
				h.Recent(10)
			}
		}(i)
	}
	wg.Wait()

	if h.Len() != 100 {
		t.Errorf("Len() = %d, want 100", h.Len())
	}
	m := h.Metrics()
	if m.Appended != 500 {
		t.Errorf("Metrics().Appended = %d, want 500", m.Appended)
	}
	if m.Evicted != 400 {
		t.Errorf("Metrics().Evicted = %d, want 400", m.Evicted)
	}
}

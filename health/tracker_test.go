package health

import (
	"sync"
	"testing"
	"time"
)

func TestTracker_RecordAndSnapshot(t *testing.T) {
	tr := NewTracker()

	tr.Record("latency", 10)
	tr.Record("latency", 20)
	tr.Record("latency", 30)

	stats, ok := tr.Snapshot("latency")
	if !ok {
		t.Fatal("expected stats for a recorded signal")
	}
	if stats.Current != 30 {
		t.Errorf("Current = %v, want 30", stats.Current)
	}
	if stats.Count != 3 {
		t.Errorf("Count = %v, want 3", stats.Count)
	}
	if stats.Average != 20 {
		t.Errorf("Average = %v, want 20", stats.Average)
	}
	if stats.RatePerMinute != 3 {
		t.Errorf("RatePerMinute = %v, want 3", stats.RatePerMinute)
	}
}

func TestTracker_UnknownSignal(t *testing.T) {
	tr := NewTracker()

	if _, ok := tr.Snapshot("never.recorded"); ok {
		t.Error("expected no stats for a signal that was never recorded")
	}
}

func TestTracker_WindowEviction(t *testing.T) {
	now := time.Now()
	tr := NewTracker(WithWindow(time.Minute), WithNowFunc(func() time.Time { return now }))

	tr.Record("errors", 1)
	tr.Record("errors", 2)

	now = now.Add(2 * time.Minute)
	tr.Record("errors", 3)

	stats, ok := tr.Snapshot("errors")
	if !ok {
		t.Fatal("expected stats")
	}
	if stats.Count != 1 {
		t.Errorf("Count = %v, want 1 after eviction", stats.Count)
	}
	if stats.Current != 3 {
		t.Errorf("Current = %v, want 3", stats.Current)
	}
	if stats.Average != 3 {
		t.Errorf("Average = %v, want 3", stats.Average)
	}
}

func TestTracker_RateCoversTrailingMinute(t *testing.T) {
	now := time.Now()
	tr := NewTracker(WithNowFunc(func() time.Time { return now }))

	// Three samples early in the window.
	tr.Record("done", 1)
	tr.Record("done", 1)
	tr.Record("done", 1)

	// Two more three minutes later. The early samples are still inside
	// the five minute window but outside the rate span.
	now = now.Add(3 * time.Minute)
	tr.Record("done", 5)
	tr.Record("done", 5)

	stats, ok := tr.Snapshot("done")
	if !ok {
		t.Fatal("expected stats")
	}
	if stats.Count != 5 {
		t.Errorf("Count = %v, want 5", stats.Count)
	}
	if stats.RatePerMinute != 2 {
		t.Errorf("RatePerMinute = %v, want 2", stats.RatePerMinute)
	}
	wantAvg := (1.0 + 1 + 1 + 5 + 5) / 5
	if stats.Average != wantAvg {
		t.Errorf("Average = %v, want %v", stats.Average, wantAvg)
	}
}

func TestTracker_NamesSorted(t *testing.T) {
	tr := NewTracker()
	tr.Record("zeta", 1)
	tr.Record("alpha", 1)
	tr.Record("mid", 1)

	names := tr.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker()
	tr.Record(SignalCompleted, 1)

	tr.Reset()

	if _, ok := tr.Snapshot(SignalCompleted); ok {
		t.Error("expected no stats after Reset")
	}
	if len(tr.Names()) != 0 {
		t.Errorf("Names() = %v, want empty after Reset", tr.Names())
	}
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := SignalCompleted
			if i%2 == 0 {
				name = SignalFailed
			}
			for range 100 {
				tr.Record(name, float64(i))
				tr.Snapshot(name)
			}
		}()
	}
	wg.Wait()

	completed, ok := tr.Snapshot(SignalCompleted)
	if !ok {
		t.Fatal("expected stats for completed signal")
	}
	failed, ok := tr.Snapshot(SignalFailed)
	if !ok {
		t.Fatal("expected stats for failed signal")
	}
	if completed.Count+failed.Count != 800 {
		t.Errorf("total count = %d, want 800", completed.Count+failed.Count)
	}
}

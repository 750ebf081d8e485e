package health

import (
	"sort"
	"sync"
	"time"
)

// DefaultWindow is the trailing span each signal keeps samples for.
const DefaultWindow = 5 * time.Minute

// rateSpan is the trailing span the per-minute rate sums over.
const rateSpan = time.Minute

// Signal names the router records. The checker derives throughput and error
// rate from them; anything else recorded on the tracker is for dashboards.
const (
	SignalCompleted = "dispatch.completed"
	SignalFailed    = "dispatch.failed"
	SignalLatencyMS = "dispatch.latency_ms"
)

// Stats is a point-in-time snapshot of one signal's trailing window.
type Stats struct {
	// Current is the most recent sample value.
	Current float64 `json:"current"`
	// Average is the mean over every sample still in the window.
	Average float64 `json:"average"`
	// RatePerMinute is the sum of sample values over the trailing minute.
	RatePerMinute float64 `json:"rate_per_minute"`
	// Count is how many samples the window holds.
	Count int `json:"count"`
}

type sample struct {
	at    time.Time
	value float64
}

// signal is one named series. Samples and stats share a mutex so readers
// always see stats consistent with the window.
type signal struct {
	mu      sync.Mutex
	samples []sample
	stats   Stats
}

// Tracker keeps a sliding window of samples per named signal. Writes evict
// expired samples and recompute the signal's statistics synchronously, so
// reads are O(1) copies and never scan.
type Tracker struct {
	mu      sync.RWMutex
	signals map[string]*signal

	window time.Duration
	now    func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithWindow overrides the trailing window span.
func WithWindow(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.window = d
		}
	}
}

// WithNowFunc overrides the tracker's clock. Tests use it to step through
// window evictions without sleeping.
func WithNowFunc(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates an empty tracker with a five-minute window.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		signals: make(map[string]*signal),
		window:  DefaultWindow,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends a sample to the named signal and recomputes its statistics.
func (t *Tracker) Record(name string, value float64) {
	sig := t.signal(name)
	now := t.now()

	sig.mu.Lock()
	defer sig.mu.Unlock()

	sig.samples = append(sig.samples, sample{at: now, value: value})
	sig.recompute(now, t.window)
}

// signal returns the named signal, creating it on first use.
func (t *Tracker) signal(name string) *signal {
	t.mu.RLock()
	sig, ok := t.signals[name]
	t.mu.RUnlock()
	if ok {
		return sig
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if sig, ok := t.signals[name]; ok {
		return sig
	}
	sig = &signal{}
	t.signals[name] = sig
	return sig
}

// recompute evicts samples older than the window and refreshes stats.
// Callers hold sig.mu.
func (sig *signal) recompute(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	idx := 0
	for idx < len(sig.samples) && !sig.samples[idx].at.After(cutoff) {
		idx++
	}
	if idx > 0 {
		sig.samples = append(sig.samples[:0], sig.samples[idx:]...)
	}

	stats := Stats{Count: len(sig.samples)}
	if stats.Count == 0 {
		sig.stats = stats
		return
	}

	rateCutoff := now.Add(-rateSpan)
	var sum float64
	for _, s := range sig.samples {
		sum += s.value
		if s.at.After(rateCutoff) {
			stats.RatePerMinute += s.value
		}
	}
	stats.Current = sig.samples[len(sig.samples)-1].value
	stats.Average = sum / float64(stats.Count)

	sig.stats = stats
}

// Snapshot returns the named signal's statistics as of its last write. The
// second return is false when the signal has never been recorded.
func (t *Tracker) Snapshot(name string) (Stats, bool) {
	t.mu.RLock()
	sig, ok := t.signals[name]
	t.mu.RUnlock()
	if !ok {
		return Stats{}, false
	}

	sig.mu.Lock()
	defer sig.mu.Unlock()
	return sig.stats, true
}

// Names returns every recorded signal name, sorted.
func (t *Tracker) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.signals))
	for name := range t.signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset drops every signal and its samples.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.signals = make(map[string]*signal)
}

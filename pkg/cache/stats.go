package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of cache counters. Counters accumulate
// from cache creation; HitRatio is hits over total lookups.
type Stats struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Sets      int64         `json:"sets"`
	Deletes   int64         `json:"deletes"`
	Evictions int64         `json:"evictions"`
	Size      int           `json:"size"`
	MaxSize   int           `json:"max_size"`
	HitRatio  float64       `json:"hit_ratio"`
	Uptime    time.Duration `json:"uptime"`
}

// statistics tracks cache counters. Hot-path operations update atomic
// counters so bookkeeping never contends on the cache lock; only the size
// high-water mark takes a mutex.
type statistics struct {
	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64

	mu        sync.RWMutex
	startTime time.Time
	maxSize   int64
}

func newStatistics() *statistics {
	return &statistics{startTime: time.Now()}
}

func (s *statistics) hit()      { atomic.AddInt64(&s.hits, 1) }
func (s *statistics) miss()     { atomic.AddInt64(&s.misses, 1) }
func (s *statistics) set()      { atomic.AddInt64(&s.sets, 1) }
func (s *statistics) delete()   { atomic.AddInt64(&s.deletes, 1) }
func (s *statistics) eviction() { atomic.AddInt64(&s.evictions, 1) }

func (s *statistics) addDeletes(n int)   { atomic.AddInt64(&s.deletes, int64(n)) }
func (s *statistics) addEvictions(n int) { atomic.AddInt64(&s.evictions, int64(n)) }

// observeSize records the live entry count and advances the high-water mark.
func (s *statistics) observeSize(size int64) {
	s.mu.Lock()
	if size > s.maxSize {
		s.maxSize = size
	}
	s.mu.Unlock()
}

// snapshot materializes the counters into a Stats value. size is supplied by
// the caller because only the backend knows its live entry count.
func (s *statistics) snapshot(size int) Stats {
	hits := atomic.LoadInt64(&s.hits)
	misses := atomic.LoadInt64(&s.misses)

	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	s.mu.RLock()
	maxSize := s.maxSize
	start := s.startTime
	s.mu.RUnlock()

	return Stats{
		Hits:      hits,
		Misses:    misses,
		Sets:      atomic.LoadInt64(&s.sets),
		Deletes:   atomic.LoadInt64(&s.deletes),
		Evictions: atomic.LoadInt64(&s.evictions),
		Size:      size,
		MaxSize:   int(maxSize),
		HitRatio:  ratio,
		Uptime:    time.Since(start),
	}
}

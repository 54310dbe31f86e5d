package job

import (
	"sync/atomic"
	"time"
)

// Stopwatch times calls and accumulates count and elapsed time atomically,
// so one instance can be shared by every worker.
type Stopwatch struct {
	count atomic.Int64
	total atomic.Int64 // nanoseconds
}

// Time runs fn and returns how long it took.
func (s *Stopwatch) Time(fn func()) time.Duration {
	start := time.Now()
	fn()
	elapsed := time.Since(start)

	s.count.Add(1)
	s.total.Add(int64(elapsed))
	return elapsed
}

// Count returns the number of timed calls.
func (s *Stopwatch) Count() int64 {
	return s.count.Load()
}

// Total returns the summed elapsed time.
func (s *Stopwatch) Total() time.Duration {
	return time.Duration(s.total.Load())
}

// Mean returns Total / Count, or 0 before the first call.
func (s *Stopwatch) Mean() time.Duration {
	n := s.count.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(s.total.Load() / n)
}

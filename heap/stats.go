package heap

import "sync/atomic"

// StatCounter is an atomically-updated counter: a thin wrapper that keeps
// every read/write site honest about wanting atomic semantics without
// spelling out sync/atomic at every call site.
type StatCounter int64

func (c *StatCounter) Inc(d int64) int64 {
	return atomic.AddInt64((*int64)(c), d)
}

func (c *StatCounter) Dec(d int64) int64 {
	return atomic.AddInt64((*int64)(c), -d)
}

func (c *StatCounter) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

func (c *StatCounter) Set(v int64) {
	atomic.StoreInt64((*int64)(c), v)
}

// sizeBuckets are the upper bounds (in bytes) of the AllocStats.Sizes
// histogram. Requests above the last bound all land in the final bucket.
var sizeBuckets = [...]uintptr{16, 32, 64, 128, 256, 512, 1024, 4096}

// AllocStats accumulates lifetime counters for one Allocator: live bytes,
// call counts, failures and a size histogram. Fields are StatCounters
// updated with sync/atomic; Allocator.Stats reads the four totals
// atomically but copies the Sizes histogram with plain reads. Writes
// happen only under whatever external lock serialises the Allocator itself.
type AllocStats struct {
	TotalSize StatCounter
	NewCalls  StatCounter
	FreeCalls StatCounter
	Failures  StatCounter
	Sizes     [len(sizeBuckets) + 1]StatCounter
}

// recordAlloc folds one successful allocation of n bytes into the
// histogram and running counters.
func (s *AllocStats) recordAlloc(n uintptr) {
	s.NewCalls.Inc(1)
	s.TotalSize.Inc(int64(n))
	s.Sizes[bucketFor(n)].Inc(1)
}

func (s *AllocStats) recordFree(n uintptr) {
	s.FreeCalls.Inc(1)
	s.TotalSize.Dec(int64(n))
}

func (s *AllocStats) recordFailure() {
	s.Failures.Inc(1)
}

func bucketFor(n uintptr) int {
	for i, b := range sizeBuckets {
		if n <= b {
			return i
		}
	}
	return len(sizeBuckets)
}

package heap

import (
	"math/rand"
	"testing"
)

func TestMallocBasic(t *testing.T) {
	a := setupAllocator(t)

	p := a.Malloc(64)
	if p == nil {
		t.Fatalf("malloc failed")
	}
	if a.Validate() != 0 {
		t.Fatalf("heap invalid after a single malloc: %d", a.Validate())
	}
	if a.GetPointerType(p) != PointerValid {
		t.Fatalf("expected PointerValid, got %s", a.GetPointerType(p))
	}
}

func TestMallocRejectsZeroSize(t *testing.T) {
	a := setupAllocator(t)
	if p := a.Malloc(0); p != nil {
		t.Fatalf("expected malloc(0) to fail")
	}
}

func TestMallocGrowsAcrossPages(t *testing.T) {
	a := setupAllocator(t)

	// Request enough total bytes that the region must grow past its
	// initial single committed page.
	var ptrs []uintptr
	for i := 0; i < 64; i++ {
		p := a.Malloc(256)
		if p == nil {
			t.Fatalf("malloc %d failed", i)
		}
		ptrs = append(ptrs, uintptr(p))
	}
	if a.Validate() != 0 {
		t.Fatalf("heap invalid after growth: %d", a.Validate())
	}
	if a.ctrl.pages != a.region.size/PageSize {
		t.Fatalf("page count out of sync: ctrl=%d region=%d",
			a.ctrl.pages, a.region.size/PageSize)
	}
	if a.ctrl.pages <= initialPages {
		t.Fatalf("expected the region to have grown past its initial page")
	}
	for _, addr := range ptrs {
		if a.GetPointerType(unsafeFromAddr(addr)) != PointerValid {
			t.Fatalf("block at %#x no longer valid", addr)
		}
	}
}

func TestFreeReusesExactFit(t *testing.T) {
	a := setupAllocator(t)

	p1 := a.Malloc(32)
	p2 := a.Malloc(32)
	if p1 == nil || p2 == nil {
		t.Fatalf("malloc failed")
	}
	a.Free(p1)

	p3 := a.Malloc(32)
	if p3 != p1 {
		t.Fatalf("expected exact-size reuse to return the freed block, got %#x want %#x",
			uintptr(p3), uintptr(p1))
	}
}

func TestFreeCoalescesNeighbors(t *testing.T) {
	a := setupAllocator(t)

	p1 := a.Malloc(32)
	p2 := a.Malloc(32)
	p3 := a.Malloc(32)
	if p1 == nil || p2 == nil || p3 == nil {
		t.Fatalf("malloc failed")
	}

	a.Free(p1)
	a.Free(p3)
	a.Free(p2)

	if a.ctrl.headersAllocated != 1 {
		t.Fatalf("expected a single coalesced header, got %d", a.ctrl.headersAllocated)
	}
	if a.Validate() != 0 {
		t.Fatalf("heap invalid after coalescing: %d", a.Validate())
	}
}

func TestMallocTightFitReusesWholeFreedBlock(t *testing.T) {
	a := setupAllocator(t)

	p := a.Malloc(100)
	q := a.Malloc(200)
	if p == nil || q == nil {
		t.Fatalf("malloc failed")
	}
	a.Free(p)

	// 100 bytes can't host a 50-byte block plus a whole residual header,
	// so the freed block must be reused in place with its slack absorbed.
	r := a.Malloc(50)
	if r != p {
		t.Fatalf("expected tight-fit reuse at %#x, got %#x", uintptr(p), uintptr(r))
	}
	h := headerAt(uintptr(r) - FenceLength - headerSize)
	if h.memSize != 50 {
		t.Fatalf("expected memSize 50 after tight fit, got %d", h.memSize)
	}
	if a.Validate() != 0 {
		t.Fatalf("heap invalid after tight-fit reuse: %d", a.Validate())
	}
}

func TestFenceCorruptionDetected(t *testing.T) {
	a := setupAllocator(t)

	p := a.Malloc(100)
	if p == nil {
		t.Fatalf("malloc failed")
	}
	b := unsafeBytes(p, 100)
	for i := range b {
		b[i] = 'X'
	}

	// One byte past the payload lands on the right fence.
	*(*byte)(unsafeFromAddr(uintptr(p) + 100)) = 0
	if got := a.Validate(); got != 1 {
		t.Fatalf("expected Validate()==1 after fence stomp, got %d", got)
	}
	if got := a.GetPointerType(p); got != PointerHeapCorrupted {
		t.Fatalf("expected PointerHeapCorrupted, got %s", got)
	}
}

func TestReallocGrowsIntoFreeSuccessor(t *testing.T) {
	a := setupAllocator(t)

	p := a.Malloc(100)
	q := a.Malloc(200)
	if p == nil || q == nil {
		t.Fatalf("malloc failed")
	}
	a.Free(q)

	r := a.Realloc(p, 250)
	if r != p {
		t.Fatalf("expected in-place grow into the freed successor, got %#x want %#x",
			uintptr(r), uintptr(p))
	}
	h := headerAt(uintptr(r) - FenceLength - headerSize)
	if h.memSize != 250 {
		t.Fatalf("expected memSize 250, got %d", h.memSize)
	}
	if h.next == nil || !h.next.isFree || h.next.memSize != 50 {
		t.Fatalf("expected a 50-byte free trailing block after the grow")
	}
	if a.Validate() != 0 {
		t.Fatalf("heap invalid after realloc grow: %d", a.Validate())
	}
}

func TestReallocShrinkInPlace(t *testing.T) {
	a := setupAllocator(t)

	p := a.Malloc(64)
	q := a.Realloc(p, 16)
	if q != p {
		t.Fatalf("expected shrink-in-place to keep the same address")
	}
	if a.Validate() != 0 {
		t.Fatalf("heap invalid after realloc shrink: %d", a.Validate())
	}
}

func TestReallocGrowRelocates(t *testing.T) {
	a := setupAllocator(t)

	p := a.Malloc(16)
	// Force something in between so growth can't happen in place.
	blocker := a.Malloc(16)
	_ = blocker

	q := a.Realloc(p, 4096)
	if q == nil {
		t.Fatalf("realloc grow failed")
	}
	if a.Validate() != 0 {
		t.Fatalf("heap invalid after realloc grow: %d", a.Validate())
	}
}

func TestReallocNilActsAsMalloc(t *testing.T) {
	a := setupAllocator(t)
	p := a.Realloc(nil, 16)
	if p == nil {
		t.Fatalf("expected realloc(nil, 16) to behave like malloc")
	}
}

func TestReallocZeroActsAsFree(t *testing.T) {
	a := setupAllocator(t)
	p := a.Malloc(16)
	if q := a.Realloc(p, 0); q != nil {
		t.Fatalf("expected realloc(p, 0) to return nil")
	}
	if a.GetPointerType(p) == PointerValid {
		t.Fatalf("expected block to no longer classify as valid after realloc-as-free")
	}
}

func TestReallocStatsTrackResizes(t *testing.T) {
	a := setupAllocator(t)

	p := a.Realloc(nil, 32) // behaves as malloc and must count as one
	if p == nil {
		t.Fatalf("realloc(nil, 32) failed")
	}
	stats := a.Stats()
	if got := stats.NewCalls.Get(); got != 1 {
		t.Fatalf("expected NewCalls==1, got %d", got)
	}
	stats = a.Stats()
	if got := stats.TotalSize.Get(); got != 32 {
		t.Fatalf("expected TotalSize==32, got %d", got)
	}

	q := a.Realloc(p, 48)
	if q == nil {
		t.Fatalf("realloc grow failed")
	}
	stats = a.Stats()
	if got := stats.TotalSize.Get(); got != 48 {
		t.Fatalf("expected TotalSize==48 after grow, got %d", got)
	}

	if r := a.Realloc(q, 0); r != nil {
		t.Fatalf("expected realloc(q, 0) to return nil")
	}
	stats = a.Stats()
	if got := stats.FreeCalls.Get(); got != 1 {
		t.Fatalf("expected FreeCalls==1 after realloc-as-free, got %d", got)
	}
	stats = a.Stats()
	if got := stats.TotalSize.Get(); got != 0 {
		t.Fatalf("expected TotalSize==0 after realloc-as-free, got %d", got)
	}
}

func TestCalloc(t *testing.T) {
	a := setupAllocator(t)
	p := a.Calloc(8, 4)
	if p == nil {
		t.Fatalf("calloc failed")
	}
	b := unsafeBytes(p, 32)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zeroed", i)
		}
	}
}

func TestDoubleFreeIsNoop(t *testing.T) {
	a := setupAllocator(t)
	p := a.Malloc(16)
	a.Free(p)
	a.Free(p) // must not corrupt the heap or panic
	if a.Validate() != 0 {
		t.Fatalf("heap invalid after double free: %d", a.Validate())
	}
}

// TestAllocSoak exercises a long randomized sequence of malloc/realloc/
// free, checking after every operation that the heap still validates and
// that live blocks still read back their last-written contents.
func TestAllocSoak(t *testing.T) {
	a := setupAllocator(t)
	rng := rand.New(rand.NewSource(0xdeadbeef))

	type live struct {
		ptr  uintptr
		size uintptr
		tag  byte
	}
	var blocks []live

	for round := 0; round < 20000; round++ {
		switch rng.Intn(3) {
		case 0:
			size := uintptr(rng.Intn(200) + 1)
			p := a.Malloc(size)
			if p == nil {
				continue
			}
			tag := byte(rng.Intn(256))
			b := unsafeBytes(p, size)
			for i := range b {
				b[i] = tag
			}
			blocks = append(blocks, live{uintptr(p), size, tag})
		case 1:
			if len(blocks) == 0 {
				continue
			}
			i := rng.Intn(len(blocks))
			a.Free(unsafeFromAddr(blocks[i].ptr))
			blocks[i] = blocks[len(blocks)-1]
			blocks = blocks[:len(blocks)-1]
		case 2:
			if len(blocks) == 0 {
				continue
			}
			i := rng.Intn(len(blocks))
			newSize := uintptr(rng.Intn(200) + 1)
			p := a.Realloc(unsafeFromAddr(blocks[i].ptr), newSize)
			if p == nil {
				continue
			}
			tag := blocks[i].tag
			n := newSize
			if n > blocks[i].size {
				n = blocks[i].size
			}
			b := unsafeBytes(p, n)
			for j := uintptr(0); j < n; j++ {
				if b[j] != tag {
					t.Fatalf("round %d: realloc lost data at offset %d", round, j)
				}
			}
			grown := unsafeBytes(p, newSize)
			for j := n; j < newSize; j++ {
				grown[j] = tag
			}
			blocks[i] = live{uintptr(p), newSize, tag}
		}
		if v := a.Validate(); v != 0 {
			t.Fatalf("round %d: heap invalid: %d", round, v)
		}
	}

	for _, bl := range blocks {
		b := unsafeBytes(unsafeFromAddr(bl.ptr), bl.size)
		for i, v := range b {
			if v != bl.tag {
				t.Fatalf("surviving block at %#x corrupted at offset %d", bl.ptr, i)
			}
		}
	}
}

package heap

import "unsafe"

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// malloc is the first-fit allocation core. It is called both from the
// public Malloc entry point and recursively by handleEmptyHeap/
// handleNoFreeBlocks after they grow the region, so only the public
// entry point records stats.
func (a *Allocator) malloc(size uintptr) unsafe.Pointer {
	if size < 1 || a.Validate() != 0 || size+headerOverhead() < size {
		return nil
	}

	if a.ctrl.head == nil {
		return a.handleEmptyHeap(size)
	}

	for h := a.ctrl.head; h != nil; h = h.next {
		switch {
		case h.isFree && h.memSize == size:
			return a.handleBlockOfExactSize(h)
		case h.isFree && h.memSize > headerOverhead()+size+1:
			return a.handleBlockOfLargerSize(h, size)
		case h.isFree && h.memSize > size:
			// Tight fit: resize in place without splitting off a new
			// free header. The slack bytes are orphaned inside h until
			// a future free() recomputes h's size against its neighbor.
			h.memSize = size
			h.isFree = false
			a.fillFences(h)
			return h.userMem
		}
	}

	return a.handleNoFreeBlocks(size)
}

func (a *Allocator) calloc(number, size uintptr) unsafe.Pointer {
	ptr := a.malloc(number * size)
	if ptr == nil {
		return nil
	}
	b := unsafe.Slice((*byte)(ptr), number*size)
	for i := range b {
		b[i] = 0
	}
	return ptr
}

// realloc resizes in place where it can (same size, shrink, tail growth,
// absorbing a free successor) and falls back to malloc-copy-free.
// A count whose header overhead overflows skips the in-place paths and
// goes straight to malloc(), which is what rejects it.
func (a *Allocator) realloc(ptr unsafe.Pointer, count uintptr) unsafe.Pointer {
	if a.Validate() != 0 {
		return nil
	}
	if ptr == nil {
		return a.malloc(count)
	}
	if count == 0 {
		a.free(ptr)
		return nil
	}
	if a.GetPointerType(ptr) != PointerValid {
		return nil
	}

	h := headerAt(uintptr(ptr) - FenceLength - headerSize)

	if count == h.memSize {
		h.updateChecksum()
		return h.userMem
	}
	if count < h.memSize {
		h.memSize = count
		a.fillFences(h)
		return h.userMem
	}
	if count+headerOverhead() < count {
		return a.malloc(count)
	}

	if h.next == nil {
		if a.allocateMoreSpace(h, count) {
			return h.userMem
		}
		return nil
	} else if h.next.isFree && h.memSize+h.next.memSize > count {
		return a.handleNextBlockFree(h, count)
	} else if h.next.isFree && farEnoughToFit(h, count) {
		return a.handleNextBlockFreeAndFar(h, count)
	}

	newPtr := a.malloc(count)
	if newPtr == nil {
		return nil
	}
	dst := unsafe.Slice((*byte)(newPtr), h.memSize)
	src := unsafe.Slice((*byte)(h.userMem), h.memSize)
	copy(dst, src)
	a.free(h.userMem)
	headerAt(uintptr(newPtr) - FenceLength - headerSize).updateChecksum()
	return newPtr
}

// farEnoughToFit reports whether count bytes fit in the span from h's
// payload start to the end of h.next's payload, i.e. whether h can grow to
// count by absorbing h.next entirely (its header and fences included).
func farEnoughToFit(h *header, count uintptr) bool {
	span := int64(uintptr(h.next.userMem)+h.next.memSize) - int64(uintptr(h.userMem))
	return span > int64(count)
}

// free marks the block free, coalesces with a free left neighbor then a
// free right neighbor, then recomputes this block's size against whatever
// now follows it (this is what reclaims the slack a prior tight-fit
// malloc orphaned) before re-stamping fences.
func (a *Allocator) free(ptr unsafe.Pointer) {
	if a.Validate() != 0 || ptr == nil || a.GetPointerType(ptr) != PointerValid {
		return
	}

	h := headerAt(uintptr(ptr) - FenceLength - headerSize)
	h.isFree = true

	next := h.next
	prev := h.prev

	if prev != nil && prev.isFree {
		h = a.coalesceLeft(h)
	}
	if next != nil && next.isFree {
		a.coalesceRight(h)
	}
	if h.next != nil {
		h.memSize = addrOf(h.next) - addrOf(h) - headerOverhead()
	}
	a.fillFences(h)
}

func (a *Allocator) handleBlockOfExactSize(h *header) unsafe.Pointer {
	h.isFree = false
	h.updateChecksum()
	return h.userMem
}

func (a *Allocator) handleBlockOfLargerSize(h *header, size uintptr) unsafe.Pointer {
	a.split(h, size)
	return h.userMem
}

// handleEmptyHeap places the very first header at the base of the region,
// growing the region first if it isn't yet big enough to hold it.
func (a *Allocator) handleEmptyHeap(size uintptr) unsafe.Pointer {
	needed := headerOverhead() + size
	if a.region.size < needed {
		pagesToAllocate := int((needed-a.region.size)/PageSize) + 1
		if !a.requestPages(pagesToAllocate) {
			return nil
		}
		return a.malloc(size)
	}
	h := headerAt(a.region.base())
	a.ctrl.head = h
	a.setHeader(h, size, nil, nil)
	return h.userMem
}

// handleNoFreeBlocks appends a new used header past the current tail,
// growing the region first if the remaining committed span (minus a
// one-page safety margin) can't fit it.
func (a *Allocator) handleNoFreeBlocks(size uintptr) unsafe.Pointer {
	last := a.lastHeader()

	freeMem := int64(a.region.end()) - int64(uintptr(last.userMem)+last.memSize+FenceLength) - PageSize
	needed := int64(headerOverhead() + size)

	if freeMem <= needed {
		pagesToAllocate := int((needed-freeMem)/PageSize) + 1
		if !a.requestPages(pagesToAllocate) {
			return nil
		}
		return a.malloc(size)
	}

	newH := headerAt(uintptr(last.userMem) + last.memSize + FenceLength)
	a.setHeader(newH, size, last, nil)
	return newH.userMem
}

// allocateMoreSpace grows h in place to count bytes, growing the region
// first (by a one-fence-length margin, not a full page) if the span past
// h isn't already large enough. This margin differs deliberately from
// handleNoFreeBlocks's page-sized margin: that path is appending a brand
// new header and wants slack for the next one; this path is just
// widening the existing tail block.
func (a *Allocator) allocateMoreSpace(h *header, count uintptr) bool {
	leftMem := int64(a.region.end()) - int64(FenceLength) - int64(uintptr(h.userMem)+h.memSize)

	if leftMem >= int64(count) {
		h.memSize = count
		a.fillFences(h)
		return true
	}

	pagesToAllocate := maxInt(int((int64(count)-leftMem+PageSize-1)/PageSize), 1)
	if !a.requestPages(pagesToAllocate) {
		return false
	}
	h.memSize = count
	a.fillFences(h)
	return true
}

// handleNextBlockFree carves h's free right neighbor down to the slack
// still needed for count bytes, relinking a reduced free header past the
// new end of h. next's fields are captured into a local copy before any
// write touches the reduced header's storage, since the reduced header
// can land at or inside next's own old storage once h has grown into it.
func (a *Allocator) handleNextBlockFree(h *header, count uintptr) unsafe.Pointer {
	reducedAddr := uintptr(h.userMem) + count + FenceLength
	reducedSize := h.memSize + h.next.memSize - count
	nextCopy := *h.next

	reduced := headerAt(reducedAddr)
	reduced.next = nextCopy.next
	if nextCopy.next != nil {
		nextCopy.next.prev = reduced
		nextCopy.next.updateChecksum()
	}
	reduced.isFree = true
	reduced.prev = h
	reduced.memSize = reducedSize
	reduced.userMem = userMemAddrFor(reducedAddr)
	a.fillFences(reduced)

	h.next = reduced
	h.memSize = count
	a.fillFences(h)
	return h.userMem
}

// handleNextBlockFreeAndFar absorbs h's whole free right neighbor by
// dropping that header from the list entirely. realloc uses it when the
// two payloads together cannot also host a residual free header, but the
// combined span, counting next's header and fences, fits count bytes.
func (a *Allocator) handleNextBlockFreeAndFar(h *header, count uintptr) unsafe.Pointer {
	if h.next.next != nil {
		h.next.next.prev = h
		h.next.next.updateChecksum()
	}
	h.next = h.next.next
	h.memSize = count
	a.fillFences(h)

	a.ctrl.cSum -= headerOverheadExtra
	a.ctrl.headersAllocated--
	return h.userMem
}

package heap

import (
	"unsafe"
)

// FenceLength is the width, in bytes, of each canary zone surrounding a
// block's payload.
const FenceLength = 4

const (
	leftFenceByte  = 'f'
	rightFenceByte = 'F'
)

// header is the intrusive block header placed immediately before the left
// fence of every block. Field order is pinned: the checksum covers every
// field up to (excluding) cSum, via an explicit offset window (see
// checksum.go) rather than a reflection-based walk, so reordering fields
// changes the on-disk checksum scope.
type header struct {
	prev, next *header
	memSize    uintptr
	isFree     bool
	userMem    unsafe.Pointer
	cSum       uint64
}

var headerSize = unsafe.Sizeof(header{})

// cSumPrefixLen is the width of the checksummed prefix of a header: every
// field declared before cSum.
var cSumPrefixLen = unsafe.Offsetof(header{}.cSum)

// headerOverhead is the fixed per-block metadata cost: the header struct
// plus both fences.
const headerOverheadExtra = 2 * FenceLength

func headerOverhead() uintptr {
	return headerSize + headerOverheadExtra
}

// headerAt views the region bytes at addr as a *header. addr must point at
// committed, owned region memory.
func headerAt(addr uintptr) *header {
	return (*header)(unsafe.Pointer(addr))
}

func addrOf(h *header) uintptr {
	return uintptr(unsafe.Pointer(h))
}

// userMemAddrFor derives the expected payload start for a header placed at
// addr: immediately after the header struct and the left fence.
func userMemAddrFor(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr + headerSize + FenceLength)
}

// setHeader initialises h as a used block of memSize bytes, links it
// between prev and next (either may be nil), fills its fences and
// re-stamps the checksums of every header it touched. It also folds the
// new block into the heap control block's headersAllocated/cSum counters.
func (a *Allocator) setHeader(h *header, memSize uintptr, prev, next *header) {
	h.isFree = false
	h.memSize = memSize
	h.prev = prev
	h.next = next
	h.userMem = userMemAddrFor(addrOf(h))
	if next != nil {
		next.prev = h
		next.updateChecksum()
	}
	if prev != nil {
		prev.next = h
		prev.updateChecksum()
	}
	a.fillFences(h)
	a.ctrl.headersAllocated++
	a.ctrl.cSum += headerOverheadExtra
}

// split shortens h to newSize and carves the residual bytes into a fresh
// free header placed right after h's new right fence. Precondition:
// h.memSize > newSize+headerOverhead()+1 (checked by the caller).
func (a *Allocator) split(h *header, newSize uintptr) {
	remaining := h.memSize - (newSize + headerOverhead())

	h.memSize = newSize
	h.isFree = false
	a.fillFences(h)

	newAddr := uintptr(h.userMem) + newSize + FenceLength
	newH := headerAt(newAddr)
	a.setHeader(newH, remaining, h, h.next)
	newH.isFree = true

	h.next = newH
	newH.updateChecksum()
	h.updateChecksum()
}

// coalesceRight merges h with h.next, which must exist and be adjacent and
// free. The merged block keeps h's identity.
func (a *Allocator) coalesceRight(h *header) {
	next := h.next
	h.memSize += headerOverhead() + next.memSize
	h.next = next.next
	if next.next != nil {
		next.next.prev = h
		next.next.updateChecksum()
	}
	h.updateChecksum()
	a.ctrl.cSum -= headerOverheadExtra
	a.ctrl.headersAllocated--
}

// coalesceLeft merges h into h.prev (which must exist and be free) and
// returns the surviving block.
func (a *Allocator) coalesceLeft(h *header) *header {
	prev := h.prev
	if prev == nil {
		return h
	}
	prev.memSize += headerOverhead() + h.memSize
	prev.next = h.next
	if h.next != nil {
		h.next.prev = prev
		h.next.updateChecksum()
	}
	prev.updateChecksum()
	a.ctrl.cSum -= headerOverheadExtra
	a.ctrl.headersAllocated--
	return prev
}

// lastHeader walks to the tail of the block list. Always an explicit
// loop, never recursion: the list can hold arbitrarily many headers on a
// large heap.
func (a *Allocator) lastHeader() *header {
	h := a.ctrl.head
	if h == nil {
		return nil
	}
	for h.next != nil {
		h = h.next
	}
	return h
}

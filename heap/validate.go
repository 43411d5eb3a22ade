package heap

import "unsafe"

// PointerType classifies an address relative to one Allocator's region
// and block list.
type PointerType int

const (
	PointerNull PointerType = iota
	PointerHeapCorrupted
	PointerControlBlock
	PointerInsideFences
	PointerInsideDataBlock
	PointerUnallocated
	PointerValid
)

func (t PointerType) String() string {
	switch t {
	case PointerNull:
		return "null"
	case PointerHeapCorrupted:
		return "heap-corrupted"
	case PointerControlBlock:
		return "control-block"
	case PointerInsideFences:
		return "inside-fences"
	case PointerInsideDataBlock:
		return "inside-data-block"
	case PointerUnallocated:
		return "unallocated"
	case PointerValid:
		return "valid"
	default:
		return "unknown"
	}
}

// Validate reports the health of the heap: 2 if it was never set up, 3 if
// any header's checksum no longer matches its prefix, 1 if the global
// fence count diverges from the running overhead total, 0 if everything
// is consistent. Each check presupposes the previous ones passed, so the
// order is fixed.
func (a *Allocator) Validate() int {
	if !a.region.present() {
		return 2
	}
	if !a.verifyAllChecksums() {
		return 3
	}
	if a.ctrl.cSum != a.countFences() {
		return 1
	}
	return 0
}

// GetPointerType classifies ptr against the current block list. The
// Allocator's heapCtrl lives in ordinary Go memory, not inside the
// region, so the only PointerControlBlock range is the portion of a
// header struct that precedes its left fence.
func (a *Allocator) GetPointerType(ptr unsafe.Pointer) PointerType {
	if ptr == nil {
		return PointerNull
	}
	if a.Validate() == 1 {
		return PointerHeapCorrupted
	}
	addr := uintptr(ptr)
	if !a.region.present() || addr < a.region.base() || a.ctrl.head == nil {
		return PointerUnallocated
	}

	h := a.ctrl.head
	for h.next != nil && addrOf(h.next) <= addr {
		h = h.next
	}

	controlBlock := addrOf(h) + headerSize
	userStart := uintptr(h.userMem)
	userEnd := userStart + h.memSize
	rightFencesEnd := userEnd + FenceLength

	switch {
	case addr < controlBlock:
		return PointerControlBlock
	case addr < userStart && !h.isFree:
		return PointerInsideFences
	case addr == userStart && !h.isFree:
		return PointerValid
	case addr == userStart:
		return PointerUnallocated
	case addr < userEnd && !h.isFree:
		return PointerInsideDataBlock
	case addr < userEnd:
		return PointerUnallocated
	case addr < rightFencesEnd && !h.isFree:
		return PointerInsideFences
	default:
		return PointerUnallocated
	}
}

// LargestUsedBlockSize returns the size of the largest block currently in
// use, or 0 if the heap is empty, unset-up, or failing validation.
func (a *Allocator) LargestUsedBlockSize() uintptr {
	if !a.region.present() || a.ctrl.head == nil || a.Validate() != 0 {
		return 0
	}
	var max uintptr
	for h := a.ctrl.head; h != nil; h = h.next {
		if !h.isFree && h.memSize > max {
			max = h.memSize
		}
	}
	return max
}

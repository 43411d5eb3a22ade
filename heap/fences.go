package heap

import "unsafe"

// fillFences stamps both canary zones around h's payload and re-stamps
// h's checksum. It must be called any time h.memSize or h's position
// changes.
func (a *Allocator) fillFences(h *header) {
	left := unsafe.Add(unsafe.Pointer(h), headerSize)
	for i := uintptr(0); i < FenceLength; i++ {
		*(*byte)(unsafe.Add(left, i)) = leftFenceByte
	}
	right := unsafe.Add(h.userMem, h.memSize)
	for i := uintptr(0); i < FenceLength; i++ {
		*(*byte)(unsafe.Add(right, i)) = rightFenceByte
	}
	h.updateChecksum()
}

// countFences walks the block list with an explicit loop and counts how
// many of the 2*FenceLength*headersAllocated canary bytes still show
// their expected value. Comparing this against the control block's cSum
// is the global corruption detector (see Validate in validate.go).
func (a *Allocator) countFences() uint64 {
	if a.ctrl.head == nil {
		return 0
	}
	var sum uint64
	for h := a.ctrl.head; h != nil; h = h.next {
		left := unsafe.Add(unsafe.Pointer(h), headerSize)
		right := unsafe.Add(h.userMem, h.memSize)
		for i := uintptr(0); i < FenceLength; i++ {
			if *(*byte)(unsafe.Add(left, i)) == leftFenceByte {
				sum++
			}
			if *(*byte)(unsafe.Add(right, i)) == rightFenceByte {
				sum++
			}
		}
	}
	return sum
}

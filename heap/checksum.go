package heap

import "unsafe"

// checksumSeed is the DJB2 seed used for every header checksum. Treated as
// a constant of the on-disk layout, not a secret: resistance to an
// adversary who knows the seed is explicitly a non-goal.
const checksumSeed = 5381

// djb2 is the classic DJB2 rolling hash: hash = hash*33 + byte, iterated
// as hash = (hash<<5) + hash + byte.
func djb2(seed uint64, data []byte) uint64 {
	h := seed
	for _, b := range data {
		h = (h << 5) + h + uint64(b)
	}
	return h
}

// headerPrefixBytes returns the checksummed prefix of h: every field
// declared before cSum, read as a raw byte window via unsafe.Offsetof so
// the scope is layout-stable and independent of any reflection-based
// field walk.
func headerPrefixBytes(h *header) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(h)), int(cSumPrefixLen))
}

func headerChecksum(h *header) uint64 {
	return djb2(checksumSeed, headerPrefixBytes(h))
}

// updateChecksum recomputes and stores h.cSum.
func (h *header) updateChecksum() {
	h.cSum = headerChecksum(h)
}

// verifyChecksum reports whether h.cSum matches its current prefix.
func (h *header) verifyChecksum() bool {
	return h.cSum == headerChecksum(h)
}

// verifyAllChecksums walks every header in address order and fails on the
// first mismatch.
func (a *Allocator) verifyAllChecksums() bool {
	for h := a.ctrl.head; h != nil; h = h.next {
		if !h.verifyChecksum() {
			return false
		}
	}
	return true
}

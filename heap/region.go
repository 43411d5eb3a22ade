package heap

// heapCtrl is the control block describing the live state of one heap
// instance: the head of the block list plus the running counters Validate
// and the diagnostic shell report against.
type heapCtrl struct {
	head *header

	// pages is how many pages the region has committed on this heap's
	// behalf; headersAllocated is how many live (used or free) blocks
	// currently exist.
	pages            uintptr
	headersAllocated uintptr

	// cSum is the running total of fence bytes owed by live blocks
	// (2*FenceLength per block). Validate compares it against
	// countFences() as the global corruption check.
	cSum uint64
}

// Region wraps a pager and tracks the committed span as a [base, base+size)
// byte range the block list is laid out over. It owns no block-list state
// itself; that lives in heapCtrl.
type Region struct {
	pg   pager
	size uintptr
}

// present reports whether the region has ever been initialised.
func (r *Region) present() bool {
	return r.pg != nil
}

// init reserves address space and commits the first n pages.
func (r *Region) init(n int) error {
	r.pg = newPager()
	if err := r.pg.init(n); err != nil {
		r.pg = nil
		return err
	}
	r.size = r.pg.committed()
	return nil
}

// requestPages grows the region by n pages (n > 0) or shrinks it by -n
// pages (n < 0). Reports whether the adjustment succeeded.
func (r *Region) requestPages(n int) bool {
	if n == 0 {
		return true
	}
	var err error
	if n > 0 {
		err = r.pg.grow(n)
	} else {
		err = r.pg.shrink(-n)
	}
	if err != nil {
		return false
	}
	r.size = r.pg.committed()
	return true
}

// base returns the fixed start address of the region's reservation.
func (r *Region) base() uintptr {
	return r.pg.base()
}

// end returns the address one past the last committed byte.
func (r *Region) end() uintptr {
	return r.pg.base() + r.size
}

// reset decommits and releases the underlying pager. The Region may be
// re-initialised afterwards.
func (r *Region) reset() {
	if r.pg != nil {
		r.pg.release()
		r.pg = nil
	}
	r.size = 0
}

// Allocator is one independent heap instance: a Region of committed memory
// plus the control block describing the blocks laid out over it. The zero
// value is not ready for use; call Setup first (see api.go).
//
// An Allocator is defined for a single mutator: the block list it
// maintains has no synchronization of its own, so callers sharing one
// across goroutines must serialise every method call externally.
type Allocator struct {
	region Region
	ctrl   heapCtrl
	stats  AllocStats
}

// requestPages adjusts the region by n pages and keeps the control
// block's page count in sync on success.
func (a *Allocator) requestPages(n int) bool {
	if !a.region.requestPages(n) {
		return false
	}
	a.ctrl.pages = a.region.size / PageSize
	return true
}

//go:build linux || darwin

package heap

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapPager reserves a large span of address space with PROT_NONE and
// commits/decommits whole pages from the front of it with Mprotect as
// requestPages is called. This is the reserve-then-commit idiom used by
// real allocators (cf. the Go runtime's sysReserve/sysMap split in
// runtime/malloc.go) and guarantees committed bytes are never relocated,
// which block headers depend on for their raw *header links.
type mmapPager struct {
	addr         uintptr
	reserved     int
	committedLen int
}

func newPlatformPager() pager {
	return &mmapPager{}
}

func (p *mmapPager) base() uintptr { return p.addr }

func (p *mmapPager) init(n int) error {
	b, err := unix.Mmap(-1, 0, maxReservation,
		unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return errReserveFailed
	}
	p.addr = uintptr(unsafe.Pointer(&b[0]))
	p.reserved = maxReservation
	if err := p.grow(n); err != nil {
		p.release()
		return err
	}
	return nil
}

func (p *mmapPager) grow(n int) error {
	delta := n * PageSize
	if p.committedLen+delta > p.reserved {
		return errCommitFailed
	}
	base := unsafe.Pointer(p.addr + uintptr(p.committedLen))
	region := unsafe.Slice((*byte)(base), delta)
	if err := unix.Mprotect(region, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return errCommitFailed
	}
	p.committedLen += delta
	return nil
}

func (p *mmapPager) shrink(n int) error {
	delta := n * PageSize
	if delta > p.committedLen {
		return errCommitFailed
	}
	newCommitted := p.committedLen - delta
	base := unsafe.Pointer(p.addr + uintptr(newCommitted))
	region := unsafe.Slice((*byte)(base), delta)
	_ = unix.Madvise(region, unix.MADV_DONTNEED)
	if err := unix.Mprotect(region, unix.PROT_NONE); err != nil {
		return errCommitFailed
	}
	p.committedLen = newCommitted
	return nil
}

func (p *mmapPager) committed() uintptr { return uintptr(p.committedLen) }

func (p *mmapPager) release() {
	if p.addr == 0 {
		return
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(p.addr)), p.reserved)
	_ = unix.Munmap(b)
	p.addr = 0
	p.reserved = 0
	p.committedLen = 0
}

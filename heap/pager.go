package heap

import "errors"

// PageSize is the granularity the region grows and shrinks by. The core
// never asks a pager for anything but a whole multiple of PageSize.
const PageSize = 4096

// maxReservation bounds how much address space a pager reserves up front.
// It is a ceiling, not a working-set estimate: reservation is cheap (no
// physical pages are committed until RequestPages asks for them).
const maxReservation = 1 << 30 // 1 GiB

// errReserveFailed is returned by a pager's init when the initial address
// space reservation itself cannot be made.
var errReserveFailed = errors.New("heap: failed to reserve address space for region")

// errCommitFailed is returned when growing/shrinking the committed range
// fails (e.g. the OS refuses to back more pages, or a shrink would exceed
// what is currently committed).
var errCommitFailed = errors.New("heap: failed to adjust committed pages")

// pager is the sbrk-style page-growth primitive the heap manager treats as
// an external collaborator. It owns one reserved span of address space and
// tracks how much of it is currently committed (readable/writable) memory.
//
// grow/shrink operate in whole pages and must never relocate previously
// committed bytes: block headers hold direct pointers into this memory.
type pager interface {
	// base returns the fixed address of the reservation. Valid only after
	// a successful init.
	base() uintptr
	// init reserves the address span and commits the first n pages.
	init(n int) error
	// grow commits n additional pages (n > 0) at the current break.
	grow(n int) error
	// shrink decommits n pages (n > 0) from the current break.
	shrink(n int) error
	// committed reports how many bytes are currently committed.
	committed() uintptr
	// release decommits everything and drops the reservation.
	release()
}

func newPager() pager {
	return newPlatformPager()
}

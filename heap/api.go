package heap

import (
	"errors"
	"unsafe"
)

// initialPages is how many pages Setup commits up front.
const initialPages = 1

var errAlreadySetup = errors.New("heap: Setup called on an already-initialised allocator")

// Setup reserves and commits the Allocator's initial region. It must be
// called exactly once before any other method; calling it again on an
// already-set-up Allocator is a no-op error.
func (a *Allocator) Setup() error {
	if a.region.present() {
		ERR("Setup called on an already-initialised allocator")
		return errAlreadySetup
	}
	if err := a.region.init(initialPages); err != nil {
		ERR("Setup: %s", err)
		return err
	}
	a.ctrl = heapCtrl{pages: initialPages}
	a.stats = AllocStats{}
	DBG("Setup: region base=%#x size=%d", a.region.base(), a.region.size)
	return nil
}

// Clean zeroes the committed region, then decommits and releases it. An
// absent region (Validate()==2) is left untouched; a corrupted block list
// is not — Clean is the recovery primitive of last resort and must work
// on a heap nothing else will touch.
func (a *Allocator) Clean() {
	if a.Validate() == 2 {
		return
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(a.region.base())), int(a.region.size))
	for i := range b {
		b[i] = 0
	}
	a.region.reset()
	a.ctrl = heapCtrl{}
}

// Malloc allocates size bytes with first-fit policy and returns a pointer
// to the usable payload, or nil on failure (invalid size, corrupted heap,
// or the region could not be grown).
func (a *Allocator) Malloc(size uintptr) unsafe.Pointer {
	ptr := a.malloc(size)
	if ptr == nil {
		a.stats.recordFailure()
		WARN("Malloc(%d) failed", size)
		return nil
	}
	a.stats.recordAlloc(size)
	DBG("Malloc(%d) -> %#x", size, uintptr(ptr))
	return ptr
}

// Calloc allocates number*size bytes and zeroes them.
func (a *Allocator) Calloc(number, size uintptr) unsafe.Pointer {
	ptr := a.calloc(number, size)
	if ptr == nil {
		a.stats.recordFailure()
		WARN("Calloc(%d, %d) failed", number, size)
		return nil
	}
	a.stats.recordAlloc(number * size)
	DBG("Calloc(%d, %d) -> %#x", number, size, uintptr(ptr))
	return ptr
}

// Realloc resizes the block at ptr to count bytes, possibly relocating it.
// A nil ptr behaves like Malloc; a zero count behaves like Free and
// returns nil.
func (a *Allocator) Realloc(ptr unsafe.Pointer, count uintptr) unsafe.Pointer {
	// The unexported realloc never touches Stats, so the counters are
	// settled here: a Realloc-as-free counts as a free call, a
	// Realloc-as-malloc counts as an allocation, and a plain resize only
	// moves TotalSize. The old size must be captured before realloc runs,
	// while the block's header is still the caller's.
	owned := ptr != nil && a.Validate() == 0 && a.GetPointerType(ptr) == PointerValid
	var oldSize uintptr
	if owned {
		oldSize = headerAt(uintptr(ptr) - FenceLength - headerSize).memSize
	}

	result := a.realloc(ptr, count)
	if count == 0 {
		if owned {
			a.stats.recordFree(oldSize)
		}
		return result
	}
	if result == nil {
		a.stats.recordFailure()
		WARN("Realloc(%#x, %d) failed", uintptr(ptr), count)
		return nil
	}
	if ptr == nil {
		a.stats.recordAlloc(count)
	} else if owned {
		a.stats.TotalSize.Inc(int64(count) - int64(oldSize))
	}
	DBG("Realloc(%#x, %d) -> %#x", uintptr(ptr), count, uintptr(result))
	return result
}

// Free releases the block at ptr. Freeing nil, an already-free block, or
// any pointer that doesn't classify as PointerValid is a silent no-op and
// does not touch the Stats counters.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	valid := a.GetPointerType(ptr) == PointerValid
	var size uintptr
	if valid {
		size = headerAt(uintptr(ptr) - FenceLength - headerSize).memSize
	}
	a.free(ptr)
	if valid {
		a.stats.recordFree(size)
	}
	DBG("Free(%#x)", uintptr(ptr))
}

// Stats returns a snapshot of the Allocator's lifetime counters.
func (a *Allocator) Stats() AllocStats {
	return AllocStats{
		TotalSize: StatCounter(a.stats.TotalSize.Get()),
		NewCalls:  StatCounter(a.stats.NewCalls.Get()),
		FreeCalls: StatCounter(a.stats.FreeCalls.Get()),
		Failures:  StatCounter(a.stats.Failures.Get()),
		Sizes:     a.stats.Sizes,
	}
}

// defaultAllocator is the package-level singleton the Heap* legacy
// wrapper functions operate on, for callers that want a single global
// heap instead of carrying an Allocator value around.
var defaultAllocator Allocator

func HeapSetup() error                       { return defaultAllocator.Setup() }
func HeapClean()                             { defaultAllocator.Clean() }
func HeapMalloc(size uintptr) unsafe.Pointer { return defaultAllocator.Malloc(size) }

func HeapCalloc(number, size uintptr) unsafe.Pointer {
	return defaultAllocator.Calloc(number, size)
}

func HeapRealloc(ptr unsafe.Pointer, count uintptr) unsafe.Pointer {
	return defaultAllocator.Realloc(ptr, count)
}

func HeapFree(ptr unsafe.Pointer)          { defaultAllocator.Free(ptr) }
func HeapGetLargestUsedBlockSize() uintptr { return defaultAllocator.LargestUsedBlockSize() }
func HeapValidate() int                    { return defaultAllocator.Validate() }

func GetPointerType(ptr unsafe.Pointer) PointerType {
	return defaultAllocator.GetPointerType(ptr)
}

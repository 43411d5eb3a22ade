package heap

import "unsafe"

func unsafeFromAddr(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr)
}

func unsafeBytes(p unsafe.Pointer, n uintptr) []byte {
	return unsafe.Slice((*byte)(p), int(n))
}

package ring

import "unsafe"

// headerPointer returns a pointer to the Header placed at the start of
// memory. The caller is responsible for ensuring memory is at least
// HeaderSize bytes and stays alive for as long as the returned pointer is
// used — true for both a process-local byte slice and a slice backed by a
// shared-memory mapping, since neither is ever moved by the Go runtime
// once obtained.
func headerPointer(memory []byte) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(memory))
}

// dataAt returns the payload region of memory as a float32 slice, starting
// immediately after the header.
func dataAt(memory []byte, capacityFrames, channels uint32) []float32 {
	base := unsafe.Add(unsafe.Pointer(unsafe.SliceData(memory)), HeaderSize)
	n := int(capacityFrames) * int(channels)
	return unsafe.Slice((*float32)(base), n)
}

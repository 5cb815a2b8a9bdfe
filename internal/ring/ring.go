// Package ring implements the single-producer/single-consumer lock-free
// frame queue that sits inside the shared-memory region. It is safe to call
// Write from the RT audio thread and Read from a separate consumer thread
// (in-process or, via the shmem package, a different process) with no
// locks and no allocation on either side.
package ring

import (
	"sync/atomic"
)

// HeaderSize is the size in bytes of Header as laid out in shared memory.
// write_pos and read_pos each occupy their own 64-byte cache line so the
// producer and consumer never false-share a line while spinning on their
// own cursor.
const HeaderSize = 3 * 64

// ProtocolVersion is the wire version of the header layout. A consumer
// attaching to a region with a different version must fail without side
// effects.
const ProtocolVersion uint32 = 1

// Header is the binary layout placed at the start of the mapped region.
// Fields after the two cursors share the third cache line; callers must
// not assume anything about padding between them beyond what Header
// itself reserves. Assumes a 64-bit platform, where atomic.Uint64 and
// atomic.Bool occupy exactly 8 and 4 bytes respectively with no implicit
// alignment padding from the runtime's noCopy/align64 guards.
type Header struct {
	writePos atomic.Uint64
	_        [64 - 8]byte

	readPos atomic.Uint64
	_       [64 - 8]byte

	SampleRate     uint32
	Channels       uint32
	BufferFrames   uint32
	Version        uint32
	producerActive atomic.Bool
	_              [64 - 4*4 - 4]byte
}

// IsPowerOfTwo reports whether v is a nonzero power of two.
func IsPowerOfTwo(v uint32) bool {
	return v > 0 && v&(v-1) == 0
}

// Size returns the total number of bytes a region must provide to host a
// ring buffer of capacityFrames frames at the given channel count.
func Size(capacityFrames, channels uint32) int {
	return HeaderSize + int(capacityFrames)*int(channels)*4
}

// Buffer is the SPSC ring buffer. The zero value is not attached to any
// memory; call InitAsProducer or AttachAsConsumer before use.
type Buffer struct {
	header *Header
	data   []float32
	mask   uint32
}

// InitAsProducer constructs the header in place over memory and zeroes the
// payload. memory must be at least Size(capacityFrames, channels) bytes and
// capacityFrames must be a power of two. Publishes producer_active with
// release ordering so a consumer that observes it true also observes a
// fully-initialized header.
func InitAsProducer(memory []byte, capacityFrames, channels, sampleRate uint32) *Buffer {
	if !IsPowerOfTwo(capacityFrames) || channels == 0 || channels > 2 || sampleRate == 0 {
		return nil
	}
	if len(memory) < Size(capacityFrames, channels) {
		return nil
	}

	h := headerAt(memory)
	h.writePos.Store(0)
	h.readPos.Store(0)
	h.SampleRate = sampleRate
	h.Channels = channels
	h.BufferFrames = capacityFrames
	h.Version = ProtocolVersion

	b := &Buffer{
		header: h,
		data:   dataAt(memory, capacityFrames, channels),
		mask:   capacityFrames - 1,
	}
	for i := range b.data {
		b.data[i] = 0
	}

	h.producerActive.Store(true)
	return b
}

// AttachAsConsumer validates the header found at the start of memory and,
// if valid, returns a Buffer attached to it. Fails without side effects on
// a version mismatch, non-power-of-two capacity, invalid channel count, or
// zero sample rate.
func AttachAsConsumer(memory []byte) (*Buffer, bool) {
	if len(memory) < HeaderSize {
		return nil, false
	}
	h := headerAt(memory)

	if h.Version != ProtocolVersion {
		return nil, false
	}
	if !IsPowerOfTwo(h.BufferFrames) || h.Channels == 0 || h.Channels > 2 || h.SampleRate == 0 {
		return nil, false
	}
	if len(memory) < Size(h.BufferFrames, h.Channels) {
		return nil, false
	}

	return &Buffer{
		header: h,
		data:   dataAt(memory, h.BufferFrames, h.Channels),
		mask:   h.BufferFrames - 1,
	}, true
}

// IsValid reports whether the buffer is attached to memory.
func (b *Buffer) IsValid() bool {
	return b != nil && b.header != nil
}

// ProducerActive reports the producer_active flag; the consumer uses this
// to detect a clean disconnect versus a crash.
func (b *Buffer) ProducerActive() bool {
	if !b.IsValid() {
		return false
	}
	return b.header.producerActive.Load()
}

// SetProducerActive is called only by the producer. A graceful shutdown
// clears this before unmapping so the consumer can tell a clean close from
// a vanished process.
func (b *Buffer) SetProducerActive(active bool) {
	if b.IsValid() {
		b.header.producerActive.Store(active)
	}
}

// Channels returns the configured channel count, or 0 if unattached.
func (b *Buffer) Channels() uint32 {
	if !b.IsValid() {
		return 0
	}
	return b.header.Channels
}

// SampleRate returns the configured sample rate, or 0 if unattached.
func (b *Buffer) SampleRate() uint32 {
	if !b.IsValid() {
		return 0
	}
	return b.header.SampleRate
}

// Capacity returns the buffer capacity in frames, or 0 if unattached.
func (b *Buffer) Capacity() uint32 {
	if !b.IsValid() {
		return 0
	}
	return b.header.BufferFrames
}

// Write copies up to frames frames of interleaved samples from data into
// the ring and publishes the new write cursor with release ordering.
// Lock-free and RT-safe: no allocation, no blocking. If the ring has less
// free space than requested, the excess is silently dropped; unread data
// is never overwritten. Returns the number of frames actually written.
func (b *Buffer) Write(data []float32, frames uint32) uint32 {
	if !b.IsValid() || frames == 0 {
		return 0
	}
	channels := b.header.Channels
	capacity := b.header.BufferFrames

	w := b.header.writePos.Load()
	r := b.header.readPos.Load()

	used := w - r
	available := capacity - uint32(used)
	toWrite := frames
	if toWrite > available {
		toWrite = available
	}
	if toWrite == 0 {
		return 0
	}

	idx := uint32(w) & b.mask
	first := toWrite
	if first > capacity-idx {
		first = capacity - idx
	}
	second := toWrite - first

	copy(b.data[idx*channels:idx*channels+first*channels], data[:first*channels])
	if second > 0 {
		copy(b.data[0:second*channels], data[first*channels:(first+second)*channels])
	}

	b.header.writePos.Store(w + uint64(toWrite))
	return toWrite
}

// Read copies up to frames frames of interleaved samples out of the ring
// into data and publishes the freed space with release ordering.
// Lock-free. Returns 0 without mutating data if the ring is empty.
func (b *Buffer) Read(data []float32, frames uint32) uint32 {
	if !b.IsValid() || frames == 0 {
		return 0
	}
	channels := b.header.Channels
	capacity := b.header.BufferFrames

	w := b.header.writePos.Load()
	r := b.header.readPos.Load()

	available64 := w - r
	available := uint32(available64)
	if available64 > uint64(capacity) {
		available = capacity
	}
	toRead := frames
	if toRead > available {
		toRead = available
	}
	if toRead == 0 {
		return 0
	}

	idx := uint32(r) & b.mask
	first := toRead
	if first > capacity-idx {
		first = capacity - idx
	}
	second := toRead - first

	copy(data[:first*channels], b.data[idx*channels:idx*channels+first*channels])
	if second > 0 {
		copy(data[first*channels:(first+second)*channels], b.data[0:second*channels])
	}

	b.header.readPos.Store(r + uint64(toRead))
	return toRead
}

// AvailableRead returns the number of frames ready for Read.
func (b *Buffer) AvailableRead() uint32 {
	if !b.IsValid() {
		return 0
	}
	w := b.header.writePos.Load()
	r := b.header.readPos.Load()
	available := w - r
	if available > uint64(b.header.BufferFrames) {
		return b.header.BufferFrames
	}
	return uint32(available)
}

// AvailableWrite returns the number of frames Write can accept without
// dropping any.
func (b *Buffer) AvailableWrite() uint32 {
	if !b.IsValid() {
		return 0
	}
	w := b.header.writePos.Load()
	r := b.header.readPos.Load()
	used := w - r
	return b.header.BufferFrames - uint32(used)
}

// Reset zeroes both cursors. Only safe when producer and consumer are both
// quiescent (e.g. before the producer has started or after both sides have
// stopped).
func (b *Buffer) Reset() {
	if !b.IsValid() {
		return
	}
	b.header.writePos.Store(0)
	b.header.readPos.Store(0)
}

func headerAt(memory []byte) *Header {
	return (*Header)(headerPointer(memory))
}

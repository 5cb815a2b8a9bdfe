// Package ipcwriter bridges the RT audio callback, which presents
// non-interleaved per-channel sample slices, to the interleaved
// shared-memory ring buffer consumed by an external process.
package ipcwriter

import (
	"sync/atomic"
	"time"

	"github.com/directpipe/host/internal/ring"
	"github.com/directpipe/host/internal/shmem"
)

const (
	// ShmName is the portable shared-memory mapping name.
	ShmName = `Local\DirectPipeAudio`
	// EventName is the portable named-event name.
	EventName = `Local\DirectPipeDataReady`

	// DefaultBufferFrames is the ring capacity used when none is given.
	DefaultBufferFrames = 4096
	// DefaultSampleRate is the sample rate used when none is given.
	DefaultSampleRate = 48000
	// DefaultChannels is the channel count used when none is given.
	DefaultChannels = 2

	// reinitGracePeriod is how long Initialize waits after a previous
	// Shutdown before recreating the region under the same name, so a
	// consumer has time to observe producer_active=false before the
	// header is overwritten.
	reinitGracePeriod = 5 * time.Millisecond
)

// Writer is the producer-side adapter described in the spec as the
// "SharedMem Writer". WriteAudio is RT-safe: it never allocates and never
// blocks beyond a single non-blocking OS signal call.
type Writer struct {
	region *shmem.Region
	event  *shmem.NamedEvent
	ring   *ring.Buffer

	scratch  []float32
	channels uint32

	connected     atomic.Bool
	droppedFrames atomic.Uint64

	everInitialized bool
}

// New returns an unconnected Writer.
func New() *Writer {
	return &Writer{}
}

// Initialize allocates the shared-memory region, constructs the ring
// buffer inside it, creates the named event, and pre-allocates the
// interleave scratch buffer. Not RT-safe; called from the engine's device
// lifecycle hooks, never from the callback.
func (w *Writer) Initialize(sampleRate, channels, bufferFrames uint32) bool {
	if bufferFrames == 0 {
		bufferFrames = DefaultBufferFrames
	}
	if channels == 0 {
		channels = DefaultChannels
	}
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}

	if w.everInitialized {
		time.Sleep(reinitGracePeriod)
	}

	size := ring.Size(bufferFrames, channels)
	region, err := shmem.Create(ShmName, size)
	if err != nil {
		return false
	}

	rb := ring.InitAsProducer(region.Data(), bufferFrames, channels, sampleRate)
	if rb == nil {
		region.Close()
		return false
	}

	event, err := shmem.CreateEvent(EventName)
	if err != nil {
		region.Close()
		return false
	}

	w.region = region
	w.event = event
	w.ring = rb
	w.channels = channels
	w.scratch = make([]float32, bufferFrames*channels)
	w.everInitialized = true
	w.connected.Store(true)
	return true
}

// WriteAudio interleaves frames channel slices (each numFrames samples,
// non-interleaved device format) into the scratch buffer and publishes
// them to the ring. RT-safe: performs no allocation and at most one
// non-blocking OS signal call, even when the ring is full.
func (w *Writer) WriteAudio(channelData [][]float32, numFrames int) {
	if !w.connected.Load() || w.ring == nil {
		return
	}

	frames := uint32(numFrames)
	capacity := uint32(len(w.scratch)) / w.channels
	if frames > capacity {
		frames = capacity
	}

	channels := w.channels
	for f := uint32(0); f < frames; f++ {
		for c := uint32(0); c < channels; c++ {
			var sample float32
			if int(c) < len(channelData) && int(f) < len(channelData[c]) {
				sample = channelData[c][f]
			}
			w.scratch[f*channels+c] = sample
		}
	}

	written := w.ring.Write(w.scratch, frames)
	if requested := uint32(numFrames); written < requested {
		w.droppedFrames.Add(uint64(requested - written))
	}

	// Signal unconditionally, even on a zero-frame write, so a consumer
	// that missed a prior signal still gets a chance to re-check.
	w.event.Signal()
}

// Shutdown clears producer_active before unmapping so the consumer can
// distinguish a clean close from a crash, then releases the event and
// memory.
func (w *Writer) Shutdown() {
	if w.ring != nil {
		w.ring.SetProducerActive(false)
	}
	w.connected.Store(false)
	if w.event != nil {
		w.event.Close()
		w.event = nil
	}
	if w.region != nil {
		w.region.Close()
		w.region = nil
	}
	w.ring = nil
}

// IsConnected reports whether the writer currently owns a live mapping.
func (w *Writer) IsConnected() bool {
	return w.connected.Load()
}

// DroppedFrames returns the cumulative count of frames dropped to
// overrun since Initialize.
func (w *Writer) DroppedFrames() uint64 {
	return w.droppedFrames.Load()
}

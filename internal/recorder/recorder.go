// Package recorder hands processed audio off the RT thread to a background
// disk writer that encodes it to Opus and muxes it into an OGG container.
package recorder

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	opus "gopkg.in/hraban/opus.v2"
)

// fifoCapacity is the bounded FIFO size in samples, sized generously above
// a single callback's worth of audio so the writer task never has to keep
// up with sub-millisecond latency.
const fifoCapacity = 32768

// frameSamples is the number of samples per channel encoded per Opus
// packet (20 ms at 48 kHz).
const frameSamples = 960

// Recorder writes interleaved float32 audio handed off from the RT thread
// to an Opus/OGG file on a background goroutine. write_block never waits:
// it is gated by an atomic flag plus a try-lock that serializes only
// against teardown, never against the writer goroutine.
type Recorder struct {
	recording atomic.Bool
	teardown  sync.Mutex

	fifo       *sampleFIFO
	channels   int
	sampleRate int

	file *os.File
	ogg  *oggWriter
	enc  *opus.Encoder

	stopCh chan struct{}
	doneCh chan struct{}

	samplesWritten atomic.Uint64
}

// New returns an idle Recorder. Start must be called before write_block
// has any effect.
func New() *Recorder {
	return &Recorder{fifo: newSampleFIFO(fifoCapacity)}
}

// Start opens the destination file, spawns the Opus encoder and the
// background writer goroutine, and arms the recording flag. Not RT-safe;
// called from the UI/control thread in response to a recording-toggle
// action.
func (r *Recorder) Start(path string, sampleRate, channels int) error {
	r.teardown.Lock()
	defer r.teardown.Unlock()

	if r.recording.Load() {
		return fmt.Errorf("recorder: already recording")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("recorder: create file: %w", err)
	}

	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("recorder: new opus encoder: %w", err)
	}

	ogg := newOGGWriter(f, sampleRate, channels)
	if err := ogg.writeHeaders(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("recorder: write ogg headers: %w", err)
	}

	r.file = f
	r.ogg = ogg
	r.enc = enc
	r.channels = channels
	r.sampleRate = sampleRate
	r.samplesWritten.Store(0)
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.writerLoop()
	r.recording.Store(true)
	return nil
}

// WriteBlock hands an interleaved buffer to the recorder's FIFO. Non-blocking
// and RT-safe: called from the audio engine's callback when the recording
// flag is set. The block is dropped while Start or Stop holds the teardown
// lock. Samples that don't fit are silently dropped; the writer goroutine
// always drains faster than real time under normal load.
func (r *Recorder) WriteBlock(buffer []float32, frames int) {
	if !r.recording.Load() {
		return
	}
	if !r.teardown.TryLock() {
		return
	}
	defer r.teardown.Unlock()
	if r.recording.Load() {
		r.fifo.Push(buffer[:frames*r.channels])
	}
}

// Recording reports whether a recording is currently in progress.
func (r *Recorder) Recording() bool { return r.recording.Load() }

// Stop clears the recording flag, acquires the teardown lock to serialize
// with any in-progress write, drains the remaining FIFO contents, and
// finalizes the file. Not RT-safe.
func (r *Recorder) Stop() error {
	if !r.recording.Load() {
		return nil
	}
	r.recording.Store(false)
	r.teardown.Lock()
	defer r.teardown.Unlock()

	close(r.stopCh)
	<-r.doneCh

	err := r.ogg.close()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// writerLoop drains the FIFO on a fixed tick, encodes complete Opus
// frames, and writes them as OGG pages. Runs until Stop closes stopCh,
// then performs one final drain before signaling doneCh.
func (r *Recorder) writerLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	pcm := make([]float32, frameSamples*r.channels)
	pending := make([]float32, 0, frameSamples*r.channels*2)
	out := make([]byte, 4000)

	drain := func() {
		for {
			n := r.fifo.Pop(pcm)
			if n == 0 {
				return
			}
			pending = append(pending, pcm[:n]...)
			for len(pending) >= frameSamples*r.channels {
				frame := pending[:frameSamples*r.channels]
				written, err := r.enc.EncodeFloat32(frame, out)
				if err == nil {
					granule := r.samplesWritten.Add(frameSamples)
					_ = r.ogg.writeOpusPacket(out[:written], granule)
				}
				pending = pending[frameSamples*r.channels:]
			}
		}
	}

	for {
		select {
		case <-ticker.C:
			drain()
		case <-r.stopCh:
			drain()
			return
		}
	}
}

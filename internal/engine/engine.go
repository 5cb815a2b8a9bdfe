// Package engine owns the audio device, runs the RT callback pipeline,
// and exposes the control surface the dispatcher and state broadcaster
// drive.
package engine

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/directpipe/host/internal/ipcwriter"
	"github.com/directpipe/host/internal/latency"
	"github.com/directpipe/host/internal/notify"
	"github.com/directpipe/host/internal/plugin"
	"github.com/directpipe/host/internal/recorder"
	"github.com/directpipe/host/internal/router"
)

// workChannels is the fixed internal channel count the work buffer, plugin
// graph, and routing logic all operate on.
const workChannels = 2

// maxWorkChannels sizes the work buffer conservatively so a device
// reconfiguration never forces a reallocation on the RT thread.
const maxWorkChannels = 8

const (
	defaultSampleRate = 48000
	defaultBlockSize  = 128
)

// Engine owns the PortAudio stream and runs the canonical RT pipeline on
// every callback.
type Engine struct {
	graph   *plugin.Graph
	router  *router.Router
	rec     *recorder.Recorder
	writer  *ipcwriter.Writer
	monitor *latency.Monitor
	notif   *notify.Queue

	stream *portaudio.Stream

	sampleRate      float64
	blockSize       int
	inputChannels   int
	outputChannels  int
	workBuffer      []float32
	deinterleaveBuf [workChannels][]float32

	channelMode atomic.Int32
	inputGain   atomicFloat32
	masterMute  atomic.Bool
	outputMute  atomic.Bool
	ipcEnabled  atomic.Bool

	inputLevel  atomicFloat32
	outputLevel atomicFloat32

	running       atomic.Bool
	wasIPCEnabled bool
}

// New returns an Engine wired to the given components. graph, monitor, and
// notif must not be nil; router, rec, and writer may be nil to disable
// those stages.
func New(graph *plugin.Graph, rt *router.Router, rec *recorder.Recorder, writer *ipcwriter.Writer, monitor *latency.Monitor, notif *notify.Queue) *Engine {
	e := &Engine{
		graph:      graph,
		router:     rt,
		rec:        rec,
		writer:     writer,
		monitor:    monitor,
		notif:      notif,
		sampleRate: defaultSampleRate,
		blockSize:  defaultBlockSize,
	}
	e.inputGain.Store(1.0)
	e.channelMode.Store(2)
	return e
}

// SetChannelMode selects mono (1) or stereo (2) downmixing of the device
// input into the work buffer.
func (e *Engine) SetChannelMode(mode int) {
	if mode != 1 && mode != 2 {
		mode = 2
	}
	e.channelMode.Store(int32(mode))
}

// SetInputGain sets the linear input gain applied in the RT callback.
func (e *Engine) SetInputGain(gain float32) { e.inputGain.Store(gain) }

// InputGain returns the current input gain.
func (e *Engine) InputGain() float32 { return e.inputGain.Load() }

// SetMasterMuted mutes both processing and output when true.
func (e *Engine) SetMasterMuted(muted bool) { e.masterMute.Store(muted) }

// MasterMuted reports the current master-mute state.
func (e *Engine) MasterMuted() bool { return e.masterMute.Load() }

// SetOutputMuted mutes only the device output, leaving IPC, recording, and
// monitor routing unaffected.
func (e *Engine) SetOutputMuted(muted bool) { e.outputMute.Store(muted) }

// OutputMuted reports the current output-mute state.
func (e *Engine) OutputMuted() bool { return e.outputMute.Load() }

// InputLevel returns the most recent input RMS level.
func (e *Engine) InputLevel() float32 { return e.inputLevel.Load() }

// OutputLevel returns the most recent output RMS level.
func (e *Engine) OutputLevel() float32 { return e.outputLevel.Load() }

// IPCEnabled reports whether shared-memory output is currently active.
func (e *Engine) IPCEnabled() bool { return e.ipcEnabled.Load() }

// RecordChannels returns the channel count of the buffer handed to every
// RT-path sink (Recorder, SharedMem Writer, Output Router): always
// workChannels, regardless of the configured input channel mode, since
// mono input is duplicated across both work-buffer channels before any
// sink sees it. Callers that open a sink against this buffer (the
// Recorder's file format, in particular) must use this count, not the
// user-facing channel-mode setting.
func (e *Engine) RecordChannels() int { return workChannels }

// SetIPCEnabled toggles shared-memory output. Enabling it (re)initializes
// the writer if necessary; disabling it shuts the writer down. Not
// RT-safe; called from the dispatcher in response to an IPC-toggle action.
func (e *Engine) SetIPCEnabled(enabled bool) error {
	if e.writer == nil {
		return fmt.Errorf("engine: no ipc writer configured")
	}
	if enabled {
		if !e.writer.IsConnected() {
			if !e.writer.Initialize(uint32(e.sampleRate), uint32(workChannels), ipcwriter.DefaultBufferFrames) {
				e.pushNotification("failed to initialize shared-memory output", notify.Error)
				return fmt.Errorf("engine: ipc initialize failed")
			}
		}
		e.ipcEnabled.Store(true)
		return nil
	}
	e.ipcEnabled.Store(false)
	e.writer.Shutdown()
	return nil
}

func (e *Engine) pushNotification(message string, level notify.Level) {
	if e.notif != nil {
		e.notif.Push(notify.Notification{Message: message, Level: level})
	}
}

// PopNotification drains one pending notification, if any. Called from a
// UI timer.
func (e *Engine) PopNotification() (notify.Notification, bool) {
	if e.notif == nil {
		return notify.Notification{}, false
	}
	return e.notif.Pop()
}

// aboutToStart runs the device-about-to-start lifecycle hook: it records
// the new format, re-prepares the graph, resizes the work buffer
// conservatively, and resets the latency monitor. Not RT-safe.
func (e *Engine) aboutToStart(sampleRate float64, blockSize int) {
	e.sampleRate = sampleRate
	e.blockSize = blockSize

	e.graph.Prepare(sampleRate, blockSize)
	e.workBuffer = make([]float32, maxWorkChannels*blockSize)
	for c := 0; c < workChannels; c++ {
		e.deinterleaveBuf[c] = make([]float32, blockSize)
	}
	e.monitor.Reset(sampleRate, blockSize)
	if e.router != nil {
		e.router.Prepare(blockSize)
	}
}

// stopped runs the device-stopped lifecycle hook: it snapshots and clears
// the IPC-enabled flag, suspends the graph, and shuts down the writer.
func (e *Engine) stopped() {
	e.wasIPCEnabled = e.ipcEnabled.Load()
	e.ipcEnabled.Store(false)
	e.graph.Suspend(true)
	if e.writer != nil {
		e.writer.Shutdown()
	}
}

// Start opens and starts the duplex audio stream on the given devices (-1
// selects the system default) and begins running the RT callback.
func (e *Engine) Start(inputDeviceID, outputDeviceID int) error {
	if e.running.Load() {
		return nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return fmt.Errorf("engine: list devices: %w", err)
	}

	inputDev, err := resolveDevice(devices, inputDeviceID, portaudio.DefaultInputDevice)
	if err != nil {
		return fmt.Errorf("engine: resolve input device: %w", err)
	}
	outputDev, err := resolveDevice(devices, outputDeviceID, portaudio.DefaultOutputDevice)
	if err != nil {
		return fmt.Errorf("engine: resolve output device: %w", err)
	}

	e.inputChannels = inputDev.MaxInputChannels
	if e.inputChannels > maxWorkChannels {
		e.inputChannels = maxWorkChannels
	}
	e.outputChannels = outputDev.MaxOutputChannels
	if e.outputChannels > maxWorkChannels {
		e.outputChannels = maxWorkChannels
	}

	e.aboutToStart(defaultSampleRate, defaultBlockSize)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   inputDev,
			Channels: e.inputChannels,
			Latency:  inputDev.DefaultLowInputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   outputDev,
			Channels: e.outputChannels,
			Latency:  outputDev.DefaultLowOutputLatency,
		},
		SampleRate:      e.sampleRate,
		FramesPerBuffer: e.blockSize,
	}

	stream, err := portaudio.OpenStream(params, e.rtCallback)
	if err != nil {
		return fmt.Errorf("engine: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("engine: start stream: %w", err)
	}

	e.stream = stream
	e.running.Store(true)

	if e.wasIPCEnabled {
		if err := e.SetIPCEnabled(true); err != nil {
			e.pushNotification("IPC re-initialization failed after restart", notify.Warning)
		}
	}

	return nil
}

// Stop halts the stream and runs the stopped lifecycle hook.
func (e *Engine) Stop() error {
	if !e.running.CompareAndSwap(true, false) {
		return nil
	}
	e.stopped()

	err := e.stream.Stop()
	if cerr := e.stream.Close(); err == nil {
		err = cerr
	}
	e.stream = nil
	return err
}

func resolveDevice(devices []*portaudio.DeviceInfo, idx int, fallback func() (*portaudio.DeviceInfo, error)) (*portaudio.DeviceInfo, error) {
	if idx >= 0 && idx < len(devices) {
		return devices[idx], nil
	}
	return fallback()
}

// rtCallback implements the canonical RT pipeline. No allocation, no
// locks other than the graph's RT-safe atomics, no blocking I/O. The only
// OS wake it may issue is the writer's named-event signal.
func (e *Engine) rtCallback(in, out []float32) {
	e.monitor.MarkStart()

	channelMode := int(e.channelMode.Load())
	gain := e.inputGain.Load()
	masterMuted := e.masterMute.Load()
	outputMuted := e.outputMute.Load()
	ipcEnabled := e.ipcEnabled.Load()

	frames := e.blockSize
	work := e.workBuffer[:workChannels*frames]
	for i := range work {
		work[i] = 0
	}

	inCh := e.inputChannels
	if inCh == 0 {
		inCh = 1
	}

	if channelMode == 1 {
		for f := 0; f < frames; f++ {
			var sum float32
			for c := 0; c < inCh; c++ {
				sum += in[f*inCh+c]
			}
			work[f*workChannels] = sum
			work[f*workChannels+1] = sum
		}
	} else {
		copyCh := inCh
		if copyCh > workChannels {
			copyCh = workChannels
		}
		for f := 0; f < frames; f++ {
			for c := 0; c < copyCh; c++ {
				work[f*workChannels+c] = in[f*inCh+c]
			}
		}
	}

	if gain < 0.999 || gain > 1.001 {
		for i := range work {
			work[i] *= gain
		}
	}

	e.inputLevel.Store(rmsChannel(work, frames, workChannels, 0))

	if !masterMuted {
		e.graph.ProcessBlock(work, frames, workChannels)

		if e.rec != nil {
			e.rec.WriteBlock(work, frames)
		}
		if ipcEnabled && e.writer != nil {
			e.deinterleave(work, frames)
			e.writer.WriteAudio([][]float32{e.deinterleaveBuf[0], e.deinterleaveBuf[1]}, frames)
		}
		if e.router != nil {
			e.router.RouteAudio(work, frames, workChannels)
		}
	}

	outCh := e.outputChannels
	if outCh == 0 {
		outCh = workChannels
	}
	for f := 0; f < frames; f++ {
		for c := 0; c < outCh; c++ {
			idx := f*outCh + c
			if masterMuted || outputMuted {
				out[idx] = 0
				continue
			}
			srcCh := c
			if srcCh >= workChannels {
				srcCh = workChannels - 1
			}
			out[idx] = work[f*workChannels+srcCh]
		}
	}

	e.outputLevel.Store(maxRMS(work, frames, workChannels))

	e.monitor.MarkEnd()
}

// deinterleave splits the interleaved work buffer into the pre-allocated
// per-channel scratch slices the IPC writer expects.
func (e *Engine) deinterleave(work []float32, frames int) {
	for c := 0; c < workChannels; c++ {
		dst := e.deinterleaveBuf[c]
		for f := 0; f < frames; f++ {
			dst[f] = work[f*workChannels+c]
		}
	}
}

func rmsChannel(buf []float32, frames, channels, ch int) float32 {
	if frames == 0 {
		return 0
	}
	var sumSq float64
	for f := 0; f < frames; f++ {
		v := float64(buf[f*channels+ch])
		sumSq += v * v
	}
	return float32(math.Sqrt(sumSq / float64(frames)))
}

func maxRMS(buf []float32, frames, channels int) float32 {
	a := rmsChannel(buf, frames, channels, 0)
	if channels < 2 {
		return a
	}
	b := rmsChannel(buf, frames, channels, 1)
	if b > a {
		return b
	}
	return a
}

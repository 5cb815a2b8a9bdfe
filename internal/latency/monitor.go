// Package latency tracks RT-callback timing and derives the CPU and
// path-latency figures published to the state broadcaster.
package latency

import (
	"sync/atomic"
	"time"
)

// smoothingFactor is the exponential-moving-average weight applied to each
// new processing-time sample.
const smoothingFactor = 0.1

// atomicFloat64 stores a float64 behind an atomic.Uint64 bit pattern, the
// idiom used throughout this codebase for lock-free UI-readable floats.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Load() float64 {
	return float64FromBits(a.bits.Load())
}

func (a *atomicFloat64) Store(v float64) {
	a.bits.Store(float64ToBits(v))
}

// Monitor measures per-callback processing time on the RT thread and
// derives CPU% and path latencies for UI consumption. MarkStart/MarkEnd
// are the only RT-callable operations; everything else is read-only from
// other threads.
type Monitor struct {
	sampleRate float64
	bufferSize int

	startTicks int64
	processing atomicFloat64
	avg        float64 // RT-thread-owned, not read elsewhere
	cpuPercent atomicFloat64
}

// New returns a Monitor configured for 48 kHz / 128-sample callbacks,
// matching the engine's defaults until Reset is called.
func New() *Monitor {
	m := &Monitor{sampleRate: 48000, bufferSize: 128}
	return m
}

// Reset reconfigures the monitor for a new sample rate and buffer size,
// called from the device's about-to-start hook.
func (m *Monitor) Reset(sampleRate float64, bufferSize int) {
	m.sampleRate = sampleRate
	m.bufferSize = bufferSize
	m.avg = 0
	m.processing.Store(0)
	m.cpuPercent.Store(0)
}

// MarkStart records the callback's start time. RT-safe.
func (m *Monitor) MarkStart() {
	m.startTicks = time.Now().UnixNano()
}

// MarkEnd computes the elapsed processing time, folds it into the running
// average, and publishes both the smoothed processing time and the
// derived CPU% atomically for UI reads. RT-safe.
func (m *Monitor) MarkEnd() {
	elapsedMs := float64(time.Now().UnixNano()-m.startTicks) / 1e6
	m.avg = m.avg + smoothingFactor*(elapsedMs-m.avg)
	m.processing.Store(m.avg)

	period := m.callbackPeriodMs()
	if period > 0 {
		m.cpuPercent.Store(m.avg / period * 100)
	}
}

func (m *Monitor) callbackPeriodMs() float64 {
	if m.sampleRate <= 0 {
		return 0
	}
	return float64(m.bufferSize) / m.sampleRate * 1000
}

// ProcessingTimeMs returns the smoothed per-callback processing time.
func (m *Monitor) ProcessingTimeMs() float64 { return m.processing.Load() }

// CPUPercent returns the derived per-callback CPU percentage.
func (m *Monitor) CPUPercent() float64 { return m.cpuPercent.Load() }

// BufferLatencyMs is the fixed latency contributed by one input or output
// buffer at the current sample rate and buffer size.
func (m *Monitor) BufferLatencyMs() float64 { return m.callbackPeriodMs() }

// TotalLatencyIPCMs is the total path latency for the shared-memory
// consumer: one input buffer plus processing time.
func (m *Monitor) TotalLatencyIPCMs() float64 {
	return m.BufferLatencyMs() + m.ProcessingTimeMs()
}

// TotalLatencyMonitorMs is the total path latency for the monitor sink:
// input buffer, processing, and output buffer.
func (m *Monitor) TotalLatencyMonitorMs() float64 {
	return m.BufferLatencyMs() + m.ProcessingTimeMs() + m.BufferLatencyMs()
}

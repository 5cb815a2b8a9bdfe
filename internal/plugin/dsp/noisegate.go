package dsp

import "encoding/binary"

const (
	// DefaultGateThreshold is the RMS level below which audio is gated
	// (~-40 dBFS).
	DefaultGateThreshold = float32(0.01)
	// DefaultGateHold is the number of blocks to keep the gate open after
	// the signal drops below threshold.
	DefaultGateHold = 10
)

// NoiseGate zeroes blocks whose RMS falls below a threshold, with a short
// hold period so it doesn't chop speech during brief pauses. It runs
// ahead of any voice-activity gate so quiet room noise never reaches it.
type NoiseGate struct {
	threshold float32
	hold      int
	remaining int
	open      bool
}

// NewNoiseGate returns a NoiseGate at DefaultGateThreshold / DefaultGateHold.
func NewNoiseGate() *NoiseGate {
	return &NoiseGate{threshold: DefaultGateThreshold, hold: DefaultGateHold}
}

// SetThreshold sets the RMS gate threshold. level is in [0,100] and maps
// to an RMS range of [0.001, 0.10].
func (g *NoiseGate) SetThreshold(level int) {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	g.threshold = 0.001 + float32(level)/100.0*0.099
}

// IsOpen reports whether the gate is currently passing audio.
func (g *NoiseGate) IsOpen() bool { return g.open }

func (g *NoiseGate) Prepare(sampleRate float64, blockSize int) {}

// ProcessBlock zeroes frame in place when the block's RMS is below
// threshold and the hold period has expired.
func (g *NoiseGate) ProcessBlock(frame []float32, frames, channels int) {
	rms := RMS(frame)

	if rms >= g.threshold {
		g.remaining = g.hold
		g.open = true
		return
	}
	if g.remaining > 0 {
		g.remaining--
		g.open = true
		return
	}
	for i := range frame {
		frame[i] = 0
	}
	g.open = false
}

func (g *NoiseGate) SetStateBlob(blob []byte) error {
	if len(blob) != 4 {
		return errStateBlobSize("noisegate", 4, len(blob))
	}
	bits := binary.BigEndian.Uint32(blob)
	g.threshold = float32frombits(bits)
	return nil
}

func (g *NoiseGate) StateBlob() []byte {
	blob := make([]byte, 4)
	binary.BigEndian.PutUint32(blob, float32bits(g.threshold))
	return blob
}

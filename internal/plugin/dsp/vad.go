package dsp

import "encoding/binary"

const (
	// DefaultVADThreshold is the RMS level below which a block is treated
	// as silence (~-46 dBFS).
	DefaultVADThreshold = float32(0.005)
	// DefaultHangover is the number of silent blocks to keep passing audio
	// after speech ends, preventing abrupt mid-word cutoffs.
	DefaultHangover = 20
)

// VAD gates audio by voice activity: speech blocks pass through, and
// silence is zeroed once the hangover period expires. Unlike NoiseGate,
// which reacts to raw level, VAD is meant to sit after AGC so its
// threshold is judged against a normalized signal.
type VAD struct {
	threshold float32
	hangover  int
	remaining int
	enabled   bool
}

// NewVAD returns a VAD at DefaultVADThreshold / DefaultHangover, enabled.
func NewVAD() *VAD {
	return &VAD{threshold: DefaultVADThreshold, hangover: DefaultHangover, enabled: true}
}

// SetEnabled enables or disables the gate. Disabled is pass-through.
func (v *VAD) SetEnabled(enabled bool) {
	v.enabled = enabled
	if !enabled {
		v.remaining = 0
	}
}

// SetThreshold sets the RMS threshold. level is in [0,100] and maps to
// [0.001, 0.05].
func (v *VAD) SetThreshold(level int) {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	v.threshold = 0.001 + float32(level)/100.0*0.049
}

func (v *VAD) Prepare(sampleRate float64, blockSize int) {}

// ProcessBlock zeroes frame in place once speech has been absent for the
// whole hangover window.
func (v *VAD) ProcessBlock(frame []float32, frames, channels int) {
	if !v.enabled {
		return
	}
	rms := RMS(frame)
	if rms > v.threshold {
		v.remaining = v.hangover
		return
	}
	if v.remaining > 0 {
		v.remaining--
		return
	}
	for i := range frame {
		frame[i] = 0
	}
}

func (v *VAD) SetStateBlob(blob []byte) error {
	if len(blob) != 5 {
		return errStateBlobSize("vad", 5, len(blob))
	}
	v.threshold = float32frombits(binary.BigEndian.Uint32(blob[0:4]))
	v.enabled = blob[4] != 0
	return nil
}

func (v *VAD) StateBlob() []byte {
	blob := make([]byte, 5)
	binary.BigEndian.PutUint32(blob[0:4], float32bits(v.threshold))
	if v.enabled {
		blob[4] = 1
	}
	return blob
}

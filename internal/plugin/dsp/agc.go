package dsp

import "encoding/binary"

const (
	// DefaultTarget is the desired RMS level (linear, ~-14 dBFS).
	DefaultTarget = 0.20
	// MinGain limits attenuation of loud signals to 20 dB.
	MinGain = 0.1
	// MaxGain allows up to +20 dB of amplification.
	MaxGain = 10.0
	// AttackCoeff controls how quickly gain is reduced when level exceeds
	// target. Higher means faster attack.
	AttackCoeff = 0.80
	// ReleaseCoeff controls how quickly gain recovers after a loud
	// transient. Slower than attack to avoid pumping artefacts.
	ReleaseCoeff = 0.02

	minRMS = 0.001
)

// AGC is an automatic gain control node. It continuously monitors the
// short-term RMS of each block and adjusts a multiplicative gain toward a
// target level using independent attack/release time constants.
type AGC struct {
	target float64
	gain   float64
}

// NewAGC returns an AGC at DefaultTarget with unity gain.
func NewAGC() *AGC {
	return &AGC{target: DefaultTarget, gain: 1.0}
}

// SetTarget sets the desired RMS level. level is in [0,100] and maps
// linearly to [0.01, 0.50].
func (a *AGC) SetTarget(level int) {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	a.target = 0.01 + float64(level)/100.0*0.49
}

// Gain returns the current linear gain multiplier.
func (a *AGC) Gain() float64 { return a.gain }

func (a *AGC) Prepare(sampleRate float64, blockSize int) {}

// ProcessBlock applies the current gain to every interleaved sample, then
// updates the gain estimate from the block's RMS. Skips the update on
// near-silent blocks so it never amplifies the noise floor.
func (a *AGC) ProcessBlock(frame []float32, frames, channels int) {
	if len(frame) == 0 {
		return
	}

	rms := float64(RMS(frame))

	for i, s := range frame {
		v := s * float32(a.gain)
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		frame[i] = v
	}

	if rms < minRMS {
		return
	}

	desired := a.target / rms
	if desired < MinGain {
		desired = MinGain
	} else if desired > MaxGain {
		desired = MaxGain
	}

	coeff := ReleaseCoeff
	if desired < a.gain {
		coeff = AttackCoeff
	}
	a.gain = a.gain + coeff*(desired-a.gain)
}

// SetStateBlob restores the target and gain from an 16-byte big-endian
// pair of float64s (target, gain).
func (a *AGC) SetStateBlob(blob []byte) error {
	if len(blob) != 16 {
		return errStateBlobSize("agc", 16, len(blob))
	}
	a.target = float64frombits(binary.BigEndian.Uint64(blob[0:8]))
	a.gain = float64frombits(binary.BigEndian.Uint64(blob[8:16]))
	return nil
}

// StateBlob captures target and gain as a 16-byte big-endian pair.
func (a *AGC) StateBlob() []byte {
	blob := make([]byte, 16)
	binary.BigEndian.PutUint64(blob[0:8], float64bits(a.target))
	binary.BigEndian.PutUint64(blob[8:16], float64bits(a.gain))
	return blob
}

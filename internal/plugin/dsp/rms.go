// Package dsp holds the host's built-in fixed-function plugin nodes —
// automatic gain control, a hard noise gate, and a voice-activity gate —
// each implementing plugin.Processor so they can sit in the chain
// alongside loaded third-party plugins.
package dsp

import "math"

// RMS returns the root-mean-square of an interleaved float32 PCM frame.
func RMS(frame []float32) float32 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(frame))))
}

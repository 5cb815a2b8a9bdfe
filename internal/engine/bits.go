package engine

import (
	"math"
	"sync/atomic"
)

// atomicFloat32 is the lock-free float idiom used across this codebase for
// values written on the RT thread and read from the UI thread.
type atomicFloat32 struct{ bits atomic.Uint32 }

func (a *atomicFloat32) Load() float32 {
	return math.Float32frombits(a.bits.Load())
}

func (a *atomicFloat32) Store(v float32) {
	a.bits.Store(math.Float32bits(v))
}

// Package plugin implements the ordered chain of audio processors that
// sits between the device input and output nodes, along with the
// structural operations (add, remove, move, bypass, bulk replace) used to
// edit it without ever letting the RT thread observe a partially-rewired
// chain.
package plugin

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ReplaceRequest is one entry of a declarative target chain passed to
// ReplaceAllAsync or used by the preset applier's fast path.
type ReplaceRequest struct {
	Descriptor Descriptor
	Bypassed   bool
	StateBlob  []byte
	HasState   bool
}

// Loader instantiates a Processor from a descriptor. In production this
// resolves to the out-of-process plugin host; tests supply a stub.
type Loader func(d Descriptor) (Processor, error)

// Graph is the RT-processed plugin chain. The zero value is not usable;
// construct with New.
type Graph struct {
	loader Loader

	mu    sync.Mutex // guards slots; never held across ProcessBlock
	slots []*slotEntry

	// active holds the chain ProcessBlock reads. Every structural edit
	// publishes a fresh copy here under mu, while suspended; ProcessBlock
	// loads it with no lock at all, per the RT/non-RT split in §4.5.
	active atomic.Pointer[[]*slotEntry]

	suspended atomic.Bool

	sampleRate float64
	blockSize  int
	prepared   atomic.Bool
}

// publishActiveLocked copies the current slots slice and publishes it for
// ProcessBlock to load lock-free. The copy decouples the published slice
// header from any backing-array mutation a later append might perform.
// Callers must hold g.mu.
func (g *Graph) publishActiveLocked() {
	snapshot := append([]*slotEntry(nil), g.slots...)
	g.active.Store(&snapshot)
}

type slotEntry struct {
	slot Slot
	node *node
}

// New returns a Graph that instantiates plugins via loader.
func New(loader Loader) *Graph {
	return &Graph{loader: loader}
}

// Prepare configures all nodes for the audio format. Not RT-safe.
func (g *Graph) Prepare(sampleRate float64, blockSize int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sampleRate = sampleRate
	g.blockSize = blockSize
	for _, e := range g.slots {
		e.node.processor.Prepare(sampleRate, blockSize)
	}
	g.prepared.Store(true)
}

// Add instantiates a plugin from descriptor and appends it to the chain.
// Returns the new index, or an error if the loader failed.
func (g *Graph) Add(d Descriptor) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	proc, err := g.loader(d)
	if err != nil {
		return -1, fmt.Errorf("plugin: load %s: %w", d.Name, err)
	}
	if g.prepared.Load() {
		proc.Prepare(g.sampleRate, g.blockSize)
	}

	n := newNode(proc)
	g.slots = append(g.slots, &slotEntry{
		slot: Slot{DisplayName: d.Name, Descriptor: d, node: n},
		node: n,
	})
	g.publishActiveLocked()
	return len(g.slots) - 1, nil
}

// Remove destroys the plugin at index after suspending the graph so the RT
// path cannot observe the removal mid-callback. Returns false if index is
// out of range.
func (g *Graph) Remove(index int) bool {
	g.Suspend(true)
	defer g.Suspend(false)

	g.mu.Lock()
	defer g.mu.Unlock()

	if index < 0 || index >= len(g.slots) {
		return false
	}
	g.slots = append(g.slots[:index], g.slots[index+1:]...)
	g.publishActiveLocked()
	return true
}

// Move relocates the plugin at from to position to.
func (g *Graph) Move(from, to int) bool {
	g.Suspend(true)
	defer g.Suspend(false)

	g.mu.Lock()
	defer g.mu.Unlock()

	if from < 0 || from >= len(g.slots) || to < 0 || to >= len(g.slots) {
		return false
	}
	e := g.slots[from]
	g.slots = append(g.slots[:from], g.slots[from+1:]...)
	g.slots = append(g.slots[:to], append([]*slotEntry{e}, g.slots[to:]...)...)
	g.publishActiveLocked()
	return true
}

// SetBypassed toggles bypass on the node at index. Observed by the RT
// callback atomically, with no structural mutex involved.
func (g *Graph) SetBypassed(index int, flag bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if index < 0 || index >= len(g.slots) {
		return false
	}
	g.slots[index].node.bypassed.Store(flag)
	return true
}

// SetSlotStateBlob restores a previously captured state blob onto the
// processor at index, used by the preset applier's fast path to update an
// already-loaded instance without reloading it.
func (g *Graph) SetSlotStateBlob(index int, blob []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if index < 0 || index >= len(g.slots) {
		return fmt.Errorf("plugin: state blob index %d out of range", index)
	}
	return g.slots[index].node.processor.SetStateBlob(blob)
}

// Count returns the number of plugins currently in the chain.
func (g *Graph) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slots)
}

// Slots returns a snapshot of the current chain's slot metadata, safe to
// inspect after the call returns (it does not alias internal state).
func (g *Graph) Slots() []Slot {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Slot, len(g.slots))
	for i, e := range g.slots {
		out[i] = e.slot
	}
	return out
}

// Suspend sets the suspended flag with release ordering; ProcessBlock
// checks it with acquire ordering via the same atomic.Bool, so the RT
// thread sees either the fully-suspended state or not, never a torn read.
// Required to bracket every structural edit.
func (g *Graph) Suspend(flag bool) {
	g.suspended.Store(flag)
}

// ProcessBlock runs the chain in place. A no-op if the graph is not
// prepared, is suspended, or frames doesn't match the block size Prepare
// was called with (rather than risk reshaping buffers on the RT thread).
// Touches only atomics and per-thread owned memory: it never acquires the
// structural mutex, loading the active chain via atomic.Pointer instead.
func (g *Graph) ProcessBlock(frame []float32, frames, channels int) {
	if !g.prepared.Load() || g.suspended.Load() {
		return
	}
	if frames != g.blockSize {
		return
	}

	slots := g.active.Load()
	if slots == nil {
		return
	}

	for _, e := range *slots {
		e.node.process(frame, frames, channels)
	}
}

// ReplaceAllAsync clears the chain immediately (the RT path then passes
// audio straight through) and loads the requested plugins on a background
// goroutine. On completion, the new chain is assembled on that background
// goroutine, bypass flags and state blobs are restored, and onDone is
// invoked on the same goroutine. The RT thread observes either the old empty chain
// or the fully-assembled new one, never a partial rewiring, because the
// assembly happens while suspended.
func (g *Graph) ReplaceAllAsync(requests []ReplaceRequest, onDone func(failures []error)) {
	g.Suspend(true)
	g.mu.Lock()
	g.slots = nil
	g.publishActiveLocked()
	g.mu.Unlock()
	g.Suspend(false)

	go func() {
		type loaded struct {
			entry *slotEntry
			req   ReplaceRequest
		}
		var built []loaded
		var failures []error

		for _, req := range requests {
			proc, err := g.loader(req.Descriptor)
			if err != nil {
				failures = append(failures, fmt.Errorf("plugin: load %s: %w", req.Descriptor.Name, err))
				continue
			}
			n := newNode(proc)
			n.bypassed.Store(req.Bypassed)
			if req.HasState {
				if err := proc.SetStateBlob(req.StateBlob); err != nil {
					failures = append(failures, fmt.Errorf("plugin: restore state %s: %w", req.Descriptor.Name, err))
				}
			}
			built = append(built, loaded{
				entry: &slotEntry{
					slot: Slot{DisplayName: req.Descriptor.Name, Descriptor: req.Descriptor, node: n},
					node: n,
				},
				req: req,
			})
		}

		g.Suspend(true)
		g.mu.Lock()
		if g.prepared.Load() {
			for _, b := range built {
				b.entry.node.processor.Prepare(g.sampleRate, g.blockSize)
			}
		}
		g.slots = make([]*slotEntry, len(built))
		for i, b := range built {
			g.slots[i] = b.entry
		}
		g.publishActiveLocked()
		g.mu.Unlock()
		g.Suspend(false)

		if onDone != nil {
			onDone(failures)
		}
	}()
}

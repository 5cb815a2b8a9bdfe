package preset

import (
	"testing"
	"time"

	"github.com/directpipe/host/internal/notify"
	"github.com/directpipe/host/internal/plugin"
)

type stubProcessor struct {
	blob []byte
}

func (p *stubProcessor) Prepare(sampleRate float64, blockSize int)            {}
func (p *stubProcessor) ProcessBlock(frame []float32, frames, channels int) {}
func (p *stubProcessor) SetStateBlob(blob []byte) error                    { p.blob = append([]byte(nil), blob...); return nil }
func (p *stubProcessor) StateBlob() []byte                                 { return p.blob }

func newTestGraph() *plugin.Graph {
	g := plugin.New(func(d plugin.Descriptor) (plugin.Processor, error) {
		return &stubProcessor{}, nil
	})
	g.Prepare(48000, 128)
	return g
}

func descriptor(id string) plugin.Descriptor {
	return plugin.Descriptor{UniqueID: id, FileOrIdentifier: "/plugins/" + id, Name: id}
}

func TestApplyFastPathWhenChainMatches(t *testing.T) {
	g := newTestGraph()
	idx, err := g.Add(descriptor("reverb"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	a := New(g, notify.New())
	var done bool
	a.Apply([]Target{
		{Descriptor: descriptor("reverb"), Bypassed: true, HasState: true, StateBlob: []byte{1, 2, 3}},
	}, func(failures []error) {
		done = true
		if len(failures) != 0 {
			t.Fatalf("unexpected failures: %v", failures)
		}
	})

	if !done {
		t.Fatal("onDone was not called synchronously on the fast path")
	}
	if g.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 (fast path must not reload)", g.Count())
	}
	slots := g.Slots()
	if !slots[idx].Bypassed() {
		t.Fatal("expected bypass to be applied on the fast path")
	}
}

func TestApplySlowPathWhenChainDiffers(t *testing.T) {
	g := newTestGraph()
	g.Add(descriptor("gain"))

	a := New(g, notify.New())
	doneCh := make(chan []error, 1)
	a.Apply([]Target{
		{Descriptor: descriptor("reverb")},
		{Descriptor: descriptor("delay")},
	}, func(failures []error) { doneCh <- failures })

	select {
	case failures := <-doneCh:
		if len(failures) != 0 {
			t.Fatalf("unexpected failures: %v", failures)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for slow-path completion")
	}

	if g.Count() != 2 {
		t.Fatalf("Count() = %d, want 2 after slow-path rebuild", g.Count())
	}
}

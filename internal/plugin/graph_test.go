package plugin

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type gainProcessor struct {
	mu    sync.Mutex
	gain  float32
	calls int
}

func (g *gainProcessor) Prepare(sampleRate float64, blockSize int) {}

func (g *gainProcessor) ProcessBlock(frame []float32, frames, channels int) {
	g.mu.Lock()
	g.calls++
	gain := g.gain
	g.mu.Unlock()
	for i := range frame {
		frame[i] *= gain
	}
}

func (g *gainProcessor) SetStateBlob(blob []byte) error {
	if len(blob) != 4 {
		return errors.New("bad state blob")
	}
	return nil
}

func (g *gainProcessor) StateBlob() []byte { return []byte{0, 0, 0, 0} }

func stubLoader(gain float32) Loader {
	return func(d Descriptor) (Processor, error) {
		return &gainProcessor{gain: gain}, nil
	}
}

func TestAddPrepareProcess(t *testing.T) {
	g := New(stubLoader(2.0))
	g.Prepare(48000, 4)
	if _, err := g.Add(Descriptor{Name: "double"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	frame := []float32{1, 1, 1, 1}
	g.ProcessBlock(frame, 4, 1)
	for i, v := range frame {
		if v != 2 {
			t.Fatalf("sample %d: got %v want 2", i, v)
		}
	}
}

func TestMismatchedBlockSizeIsNoop(t *testing.T) {
	g := New(stubLoader(2.0))
	g.Prepare(48000, 4)
	g.Add(Descriptor{Name: "double"})

	frame := []float32{1, 1}
	g.ProcessBlock(frame, 2, 1)
	if frame[0] != 1 {
		t.Fatal("ProcessBlock mutated frame despite block-size mismatch")
	}
}

func TestBypassToggleTakesEffectImmediately(t *testing.T) {
	g := New(stubLoader(2.0))
	g.Prepare(48000, 2)
	g.Add(Descriptor{Name: "double"})

	g.SetBypassed(0, true)
	frame := []float32{1, 1}
	g.ProcessBlock(frame, 2, 1)
	if frame[0] != 1 {
		t.Fatal("bypassed plugin still modified the frame")
	}

	g.SetBypassed(0, false)
	g.ProcessBlock(frame, 2, 1)
	if frame[0] != 2 {
		t.Fatal("un-bypassed plugin did not modify the frame")
	}
}

func TestRemoveShiftsIndices(t *testing.T) {
	g := New(stubLoader(1.0))
	g.Prepare(48000, 1)
	g.Add(Descriptor{Name: "a"})
	g.Add(Descriptor{Name: "b"})
	g.Add(Descriptor{Name: "c"})

	if !g.Remove(0) {
		t.Fatal("Remove(0) failed")
	}
	slots := g.Slots()
	if len(slots) != 2 || slots[0].DisplayName != "b" || slots[1].DisplayName != "c" {
		t.Fatalf("unexpected slots after remove: %+v", slots)
	}
}

func TestSuspendedGraphProcessBlockIsNoop(t *testing.T) {
	g := New(stubLoader(2.0))
	g.Prepare(48000, 2)
	g.Add(Descriptor{Name: "double"})

	g.Suspend(true)
	frame := []float32{1, 1}
	g.ProcessBlock(frame, 2, 1)
	if frame[0] != 1 {
		t.Fatal("suspended graph still processed the frame")
	}
}

func TestReplaceAllAsyncRebuildsChain(t *testing.T) {
	g := New(stubLoader(3.0))
	g.Prepare(48000, 2)
	g.Add(Descriptor{Name: "old"})

	done := make(chan []error, 1)
	g.ReplaceAllAsync([]ReplaceRequest{
		{Descriptor: Descriptor{Name: "new-a"}},
		{Descriptor: Descriptor{Name: "new-b"}, Bypassed: true},
	}, func(failures []error) { done <- failures })

	select {
	case failures := <-done:
		if len(failures) != 0 {
			t.Fatalf("unexpected failures: %v", failures)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReplaceAllAsync did not complete")
	}

	slots := g.Slots()
	if len(slots) != 2 || slots[0].DisplayName != "new-a" || slots[1].DisplayName != "new-b" {
		t.Fatalf("unexpected slots after replace: %+v", slots)
	}
	if !slots[1].Bypassed() {
		t.Fatal("bypass flag was not restored on the new chain")
	}
}

func TestReplaceAllAsyncReportsLoadFailures(t *testing.T) {
	g := New(func(d Descriptor) (Processor, error) {
		if d.Name == "bad" {
			return nil, errors.New("no such plugin")
		}
		return &gainProcessor{gain: 1}, nil
	})
	g.Prepare(48000, 2)

	done := make(chan []error, 1)
	g.ReplaceAllAsync([]ReplaceRequest{
		{Descriptor: Descriptor{Name: "good"}},
		{Descriptor: Descriptor{Name: "bad"}},
	}, func(failures []error) { done <- failures })

	failures := <-done
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if g.Count() != 1 {
		t.Fatalf("expected the loadable plugin to remain, got %d slots", g.Count())
	}
}

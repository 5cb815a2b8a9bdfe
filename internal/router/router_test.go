package router

import "testing"

type recordingSink struct {
	last   []float32
	frames int
	calls  int
}

func (s *recordingSink) WriteMonitor(buffer []float32, frames int) {
	s.last = append([]float32(nil), buffer...)
	s.frames = frames
	s.calls++
}

func TestRouteAudioPassesThroughAtUnityGain(t *testing.T) {
	sink := &recordingSink{}
	r := New(sink)
	r.Prepare(4)

	buf := []float32{0.1, 0.2, 0.3, 0.4}
	r.RouteAudio(buf, 2, 2)

	if sink.calls != 1 {
		t.Fatalf("calls = %d, want 1", sink.calls)
	}
	for i, v := range sink.last {
		if v != buf[i] {
			t.Fatalf("sample %d = %v, want unscaled %v", i, v, buf[i])
		}
	}
}

func TestRouteAudioScalesAtNonUnityGain(t *testing.T) {
	sink := &recordingSink{}
	r := New(sink)
	r.Prepare(4)
	r.SetVolume(0.5)

	buf := []float32{0.2, 0.4, 0.2, 0.4}
	r.RouteAudio(buf, 2, 2)

	for i, v := range sink.last {
		want := buf[i] * 0.5
		if v != want {
			t.Fatalf("sample %d = %v, want %v", i, v, want)
		}
	}
}

func TestRouteAudioDuplicatesMonoToStereo(t *testing.T) {
	sink := &recordingSink{}
	r := New(sink)
	r.Prepare(4)

	buf := []float32{0.5, 0.25}
	r.RouteAudio(buf, 2, 1)

	want := []float32{0.5, 0.5, 0.25, 0.25}
	if len(sink.last) != len(want) {
		t.Fatalf("len = %d, want %d", len(sink.last), len(want))
	}
	for i, v := range want {
		if sink.last[i] != v {
			t.Fatalf("sample %d = %v, want %v", i, sink.last[i], v)
		}
	}
}

func TestRouteAudioSkippedWhenDisabled(t *testing.T) {
	sink := &recordingSink{}
	r := New(sink)
	r.Prepare(4)
	r.SetEnabled(false)

	r.RouteAudio([]float32{0.1, 0.1}, 1, 2)
	if sink.calls != 0 {
		t.Fatalf("calls = %d, want 0 while disabled", sink.calls)
	}
}

func TestSetVolumeClampsToUnitRange(t *testing.T) {
	r := New(nil)
	r.SetVolume(-1)
	if r.Volume() != 0 {
		t.Fatalf("Volume() = %v, want 0 after negative clamp", r.Volume())
	}
	r.SetVolume(5)
	if r.Volume() != 1 {
		t.Fatalf("Volume() = %v, want 1 after high clamp", r.Volume())
	}
}

func TestLevelReflectsLastRoutedPeak(t *testing.T) {
	sink := &recordingSink{}
	r := New(sink)
	r.Prepare(4)

	r.RouteAudio([]float32{0.1, -0.9, 0.2, 0.3}, 2, 2)
	if got := r.Level(); got != 0.9 {
		t.Fatalf("Level() = %v, want 0.9", got)
	}
}

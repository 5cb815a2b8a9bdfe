package latency

import "testing"

func TestMarkStartEndAccumulatesProcessingTime(t *testing.T) {
	m := New()
	m.Reset(48000, 128)

	for i := 0; i < 5; i++ {
		m.MarkStart()
		m.MarkEnd()
	}
	if m.ProcessingTimeMs() < 0 {
		t.Fatalf("processing time went negative: %v", m.ProcessingTimeMs())
	}
}

func TestBufferLatencyMatchesFormula(t *testing.T) {
	m := New()
	m.Reset(48000, 480)
	want := 480.0 / 48000.0 * 1000.0
	if got := m.BufferLatencyMs(); got != want {
		t.Fatalf("BufferLatencyMs = %v, want %v", got, want)
	}
}

func TestTotalLatencyComposesBufferAndProcessing(t *testing.T) {
	m := New()
	m.Reset(48000, 128)
	m.MarkStart()
	m.MarkEnd()

	ipc := m.TotalLatencyIPCMs()
	want := m.BufferLatencyMs() + m.ProcessingTimeMs()
	if ipc != want {
		t.Fatalf("TotalLatencyIPCMs = %v, want %v", ipc, want)
	}

	mon := m.TotalLatencyMonitorMs()
	wantMon := m.BufferLatencyMs()*2 + m.ProcessingTimeMs()
	if mon != wantMon {
		t.Fatalf("TotalLatencyMonitorMs = %v, want %v", mon, wantMon)
	}
}

func TestResetClearsAccumulatedAverage(t *testing.T) {
	m := New()
	m.Reset(48000, 128)
	m.MarkStart()
	m.MarkEnd()

	m.Reset(44100, 256)
	if m.ProcessingTimeMs() != 0 {
		t.Fatalf("ProcessingTimeMs after Reset = %v, want 0", m.ProcessingTimeMs())
	}
}

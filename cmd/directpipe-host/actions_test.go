package main

import (
	"testing"

	"github.com/directpipe/host/internal/catalog"
	"github.com/directpipe/host/internal/config"
	"github.com/directpipe/host/internal/control"
	"github.com/directpipe/host/internal/engine"
	"github.com/directpipe/host/internal/latency"
	"github.com/directpipe/host/internal/notify"
	"github.com/directpipe/host/internal/plugin"
	"github.com/directpipe/host/internal/preset"
	"github.com/directpipe/host/internal/recorder"
	"github.com/directpipe/host/internal/router"
)

type stubProcessor struct{}

func (stubProcessor) Prepare(float64, int)            {}
func (stubProcessor) ProcessBlock([]float32, int, int) {}
func (stubProcessor) SetStateBlob([]byte) error        { return nil }
func (stubProcessor) StateBlob() []byte                { return nil }

func newTestDeps(t *testing.T) *actionDeps {
	t.Helper()
	graph := plugin.New(func(d plugin.Descriptor) (plugin.Processor, error) {
		return stubProcessor{}, nil
	})
	rt := router.New(nil)
	notif := notify.New()
	eng := engine.New(graph, rt, nil, nil, latency.New(), notif)
	applier := preset.New(graph, notif)

	cat, err := catalog.Open(":memory:")
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	cfg := config.Default()
	return &actionDeps{
		engine:      eng,
		graph:       graph,
		router:      rt,
		applier:     applier,
		catalog:     cat,
		recorder:    recorder.New(),
		presetDir:   t.TempDir(),
		recordDir:   t.TempDir(),
		broadcaster: control.NewBroadcaster(),
		cfg:         &cfg,
	}
}

func TestClampGainBounds(t *testing.T) {
	if g := clampGain(-1); g != 0 {
		t.Fatalf("clampGain(-1) = %v, want 0", g)
	}
	if g := clampGain(10); g != 4 {
		t.Fatalf("clampGain(10) = %v, want 4", g)
	}
	if g := clampGain(1.5); g != 1.5 {
		t.Fatalf("clampGain(1.5) = %v, want 1.5", g)
	}
}

func TestWrapSlotWrapsAroundFiveSlots(t *testing.T) {
	if s := wrapSlot(5); s != 0 {
		t.Fatalf("wrapSlot(5) = %d, want 0", s)
	}
	if s := wrapSlot(-1); s != 4 {
		t.Fatalf("wrapSlot(-1) = %d, want 4", s)
	}
	if s := wrapSlot(2); s != 2 {
		t.Fatalf("wrapSlot(2) = %d, want 2", s)
	}
}

func TestOnActionMasterBypassToggles(t *testing.T) {
	d := newTestDeps(t)
	d.onAction(control.ActionEvent{Action: control.ActionMasterBypass})
	if !d.engine.MasterMuted() {
		t.Fatal("expected master muted after toggling from false")
	}
	d.onAction(control.ActionEvent{Action: control.ActionMasterBypass})
	if d.engine.MasterMuted() {
		t.Fatal("expected master unmuted after toggling back")
	}
}

func TestOnActionPanicMuteForcesMasterMute(t *testing.T) {
	d := newTestDeps(t)
	d.onAction(control.ActionEvent{Action: control.ActionPanicMute})
	if !d.engine.MasterMuted() {
		t.Fatal("expected master muted after panic_mute")
	}
}

func TestOnActionSetVolumeMonitorUpdatesRouter(t *testing.T) {
	d := newTestDeps(t)
	d.onAction(control.ActionEvent{Action: control.ActionSetVolume, StringParam: "monitor", FloatParam: 0.5})
	if got := d.router.Volume(); got != 0.5 {
		t.Fatalf("router.Volume() = %v, want 0.5", got)
	}
}

func TestOnActionToggleMuteOutput(t *testing.T) {
	d := newTestDeps(t)
	d.onAction(control.ActionEvent{Action: control.ActionToggleMute, StringParam: "output"})
	if !d.engine.OutputMuted() {
		t.Fatal("expected output muted")
	}
}

func TestOnActionInputGainAdjustClampsAndAccumulates(t *testing.T) {
	d := newTestDeps(t)
	d.engine.SetInputGain(1)
	d.onAction(control.ActionEvent{Action: control.ActionInputGainAdjust, FloatParam: 10})
	if got := d.engine.InputGain(); got != 4 {
		t.Fatalf("InputGain() = %v, want clamped to 4", got)
	}
}

func TestOnActionRecordingToggleStartsThenStops(t *testing.T) {
	d := newTestDeps(t)
	d.onAction(control.ActionEvent{Action: control.ActionRecordingToggle})
	if !d.recorder.Recording() {
		t.Fatal("expected recording to start")
	}
	d.onAction(control.ActionEvent{Action: control.ActionRecordingToggle})
	if d.recorder.Recording() {
		t.Fatal("expected recording to stop")
	}
}

func TestToggleRecordingUsesEngineChannelsNotConfiguredChannelMode(t *testing.T) {
	d := newTestDeps(t)
	d.cfg.ChannelMode = 1 // mono config must not desync the recorder from the 2-channel work buffer

	d.toggleRecording()
	if !d.recorder.Recording() {
		t.Fatal("expected recording to start despite mono channel mode")
	}
	d.toggleRecording()
}

func TestTogglePluginBypassFlipsSlotState(t *testing.T) {
	d := newTestDeps(t)
	if _, err := d.graph.Add(plugin.Descriptor{Name: "Gain"}); err != nil {
		t.Fatalf("graph.Add: %v", err)
	}

	d.togglePluginBypass(0)
	if !d.graph.Slots()[0].Bypassed() {
		t.Fatal("expected slot 0 bypassed after toggle")
	}
	d.togglePluginBypass(0)
	if d.graph.Slots()[0].Bypassed() {
		t.Fatal("expected slot 0 not bypassed after second toggle")
	}
}

func TestTogglePluginBypassIgnoresOutOfRangeIndex(t *testing.T) {
	d := newTestDeps(t)
	d.togglePluginBypass(99) // must not panic
}

func TestResolveTargetFallsBackToRawPathWhenCatalogMisses(t *testing.T) {
	d := newTestDeps(t)
	target, err := d.resolveTarget(preset.PluginEntry{Name: "Delay", Path: "/plugins/delay.vst3"})
	if err != nil {
		t.Fatalf("resolveTarget: %v", err)
	}
	if target.Descriptor.FileOrIdentifier != "/plugins/delay.vst3" || target.Descriptor.Name != "Delay" {
		t.Fatalf("target.Descriptor = %+v, want raw path fallback", target.Descriptor)
	}
}

func TestResolveTargetPrefersCatalogMatch(t *testing.T) {
	d := newTestDeps(t)
	d.catalog.Record(plugin.Descriptor{UniqueID: "uid-1", FileOrIdentifier: "/plugins/delay.vst3", Name: "Delay"})

	target, err := d.resolveTarget(preset.PluginEntry{Name: "Delay", Path: "/plugins/delay.vst3"})
	if err != nil {
		t.Fatalf("resolveTarget: %v", err)
	}
	if target.Descriptor.UniqueID != "uid-1" {
		t.Fatalf("target.Descriptor.UniqueID = %q, want uid-1 from catalog", target.Descriptor.UniqueID)
	}
}

func TestResolveTargetDecodesStateBlob(t *testing.T) {
	d := newTestDeps(t)
	// "AAE=" base64-decodes to []byte{0x00, 0x01}.
	target, err := d.resolveTarget(preset.PluginEntry{Name: "Gain", StateBase64: "AAE="})
	if err != nil {
		t.Fatalf("resolveTarget: %v", err)
	}
	if !target.HasState || len(target.StateBlob) != 2 {
		t.Fatalf("target = %+v, want decoded 2-byte state blob", target)
	}
}

func TestResolveTargetRejectsInvalidBase64(t *testing.T) {
	d := newTestDeps(t)
	if _, err := d.resolveTarget(preset.PluginEntry{Name: "Gain", StateBase64: "not-base64!"}); err == nil {
		t.Fatal("expected error for invalid base64 state")
	}
}

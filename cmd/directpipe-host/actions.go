package main

import (
	"encoding/base64"
	"log"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/directpipe/host/internal/catalog"
	"github.com/directpipe/host/internal/config"
	"github.com/directpipe/host/internal/control"
	"github.com/directpipe/host/internal/engine"
	"github.com/directpipe/host/internal/plugin"
	"github.com/directpipe/host/internal/preset"
	"github.com/directpipe/host/internal/recorder"
	"github.com/directpipe/host/internal/router"
)

// actionDeps holds everything an ActionEvent might need to touch. It is
// the single dispatcher listener that bridges control events to the
// engine, the plugin graph, the output router, the preset applier, and
// the scanned-plugin catalog.
type actionDeps struct {
	engine      *engine.Engine
	graph       *plugin.Graph
	router      *router.Router
	applier     *preset.Applier
	catalog     *catalog.Catalog
	recorder    *recorder.Recorder
	presetDir   string
	recordDir   string
	broadcaster *control.Broadcaster
	cfg         *config.Config
}

func (d *actionDeps) onAction(e control.ActionEvent) {
	switch e.Action {
	case control.ActionPluginBypass:
		d.togglePluginBypass(e.IntParam)

	case control.ActionMasterBypass:
		d.engine.SetMasterMuted(!d.engine.MasterMuted())

	case control.ActionSetVolume:
		d.setVolume(e.StringParam, e.FloatParam)

	case control.ActionToggleMute:
		d.toggleMute(e.StringParam)

	case control.ActionLoadPreset, control.ActionSwitchPresetSlot:
		d.loadSlot(e.IntParam)

	case control.ActionPanicMute:
		d.engine.SetMasterMuted(true)

	case control.ActionInputGainAdjust:
		d.engine.SetInputGain(clampGain(d.engine.InputGain() + float32(e.FloatParam)))

	case control.ActionNextPreset:
		d.loadSlot(wrapSlot(d.cfg.ActiveSlot + 1))

	case control.ActionPreviousPreset:
		d.loadSlot(wrapSlot(d.cfg.ActiveSlot - 1))

	case control.ActionInputMuteToggle:
		// The engine does not separately track an input-mute flag; input
		// muting is implemented as zero gain, preserving the RT pipeline's
		// single gain-apply step.
		if d.engine.InputGain() == 0 {
			d.engine.SetInputGain(1)
		} else {
			d.engine.SetInputGain(0)
		}

	case control.ActionMonitorToggle:
		d.router.SetEnabled(!d.router.Enabled())

	case control.ActionRecordingToggle:
		d.toggleRecording()

	case control.ActionIPCToggle:
		if err := d.engine.SetIPCEnabled(!d.engine.IPCEnabled()); err != nil {
			log.Printf("[actions] ipc_toggle: %v", err)
		}

	case control.ActionSetPluginParameter:
		// Out-of-process plugins have no generic parameter-index contract
		// here (plugin-host specific); built-in dsp nodes do expose settable
		// fields (AGC target, gate threshold) but have no normalized
		// parameter-index mapping yet to route this through.
		log.Printf("[actions] set_plugin_parameter plugin=%d param=%d value=%.3f (parameter routing is plugin-host specific)",
			e.IntParam, e.IntParam2, e.FloatParam)
	}
}

func clampGain(g float32) float32 {
	if g < 0 {
		return 0
	}
	if g > 4 {
		return 4
	}
	return g
}

func wrapSlot(slot int) int {
	if slot < 0 {
		return 4
	}
	if slot > 4 {
		return 0
	}
	return slot
}

// toggleRecording starts or stops the Recorder. A fresh recording gets a
// UUID-derived filename so concurrent or repeated sessions never collide
// on disk, mirroring how the signaling server names its captured clips.
func (d *actionDeps) toggleRecording() {
	if d.recorder.Recording() {
		if err := d.recorder.Stop(); err != nil {
			log.Printf("[actions] recording_toggle stop: %v", err)
		}
		return
	}

	name := uuid.New().String() + ".ogg"
	path := filepath.Join(d.recordDir, name)
	// The RT pipeline hands the Recorder its fixed internal work-buffer
	// layout, not the user-facing channel-mode setting (mono input is
	// duplicated into both work-buffer channels before any sink sees it).
	if err := d.recorder.Start(path, d.cfg.SampleRate, d.engine.RecordChannels()); err != nil {
		log.Printf("[actions] recording_toggle start: %v", err)
	}
}

func (d *actionDeps) togglePluginBypass(index int) {
	slots := d.graph.Slots()
	if index < 0 || index >= len(slots) {
		log.Printf("[actions] plugin_bypass: index %d out of range (%d slots)", index, len(slots))
		return
	}
	d.graph.SetBypassed(index, !slots[index].Bypassed())
}

func (d *actionDeps) setVolume(target string, value float64) {
	switch target {
	case "monitor":
		d.router.SetVolume(float32(value))
	default:
		log.Printf("[actions] set_volume: unrecognized target %q", target)
	}
}

func (d *actionDeps) toggleMute(target string) {
	switch target {
	case "output":
		d.engine.SetOutputMuted(!d.engine.OutputMuted())
	case "master":
		d.engine.SetMasterMuted(!d.engine.MasterMuted())
	default:
		log.Printf("[actions] toggle_mute: unrecognized target %q", target)
	}
}

func (d *actionDeps) loadSlot(slot int) {
	path, err := preset.SlotPath(d.presetDir, slot)
	if err != nil {
		log.Printf("[actions] load slot %d: %v", slot, err)
		return
	}
	file, err := preset.LoadFile(path)
	if err != nil {
		log.Printf("[actions] load slot %d: %v", slot, err)
		return
	}

	targets, failures := file.Targets(d.resolveTarget)
	for _, f := range failures {
		log.Printf("[actions] preset resolve: %v", f)
	}

	d.applier.Apply(targets, func(applyFailures []error) {
		for _, f := range applyFailures {
			log.Printf("[actions] preset apply: %v", f)
		}
		d.cfg.ActiveSlot = slot
		d.broadcaster.Update(func(s *control.AppState) { s.ActiveSlot = slot })
	})
}

// resolveTarget turns a persisted plugin entry into a loadable Target,
// trying the scanned-plugin catalog before falling back to the raw path
// recorded at save time.
func (d *actionDeps) resolveTarget(entry preset.PluginEntry) (preset.Target, error) {
	want := plugin.Descriptor{FileOrIdentifier: entry.Path, Name: entry.Name}
	descriptor := want
	if d.catalog != nil {
		if resolved, ok, err := d.catalog.Resolve(want); err == nil && ok {
			descriptor = resolved
		}
	}

	var blob []byte
	hasState := entry.StateBase64 != ""
	if hasState {
		decoded, err := base64.StdEncoding.DecodeString(entry.StateBase64)
		if err != nil {
			return preset.Target{}, err
		}
		blob = decoded
	}

	return preset.Target{
		Descriptor: descriptor,
		Bypassed:   entry.Bypassed,
		StateBlob:  blob,
		HasState:   hasState,
	}, nil
}

package preset

import (
	"fmt"
	"path/filepath"
	"testing"
)

func TestSlotPathRejectsOutOfRange(t *testing.T) {
	if _, err := SlotPath("/tmp", 5); err == nil {
		t.Fatal("expected error for slot 5")
	}
	if _, err := SlotPath("/tmp", -1); err == nil {
		t.Fatal("expected error for slot -1")
	}
}

func TestSlotPathNamesSlotsAThroughE(t *testing.T) {
	path, err := SlotPath("/tmp", 0)
	if err != nil {
		t.Fatalf("SlotPath: %v", err)
	}
	if path != filepath.Join("/tmp", "slot_A.dppreset") {
		t.Fatalf("SlotPath(0) = %s, want slot_A.dppreset", path)
	}
	path, _ = SlotPath("/tmp", 4)
	if path != filepath.Join("/tmp", "slot_E.dppreset") {
		t.Fatalf("SlotPath(4) = %s, want slot_E.dppreset", path)
	}
}

func TestSaveAndLoadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.dppreset")

	f := File{
		ActiveSlot: 2,
		SampleRate: 48000,
		BufferSize: 128,
		InputGain:  1.2,
		Plugins: []PluginEntry{
			{Name: "Reverb", Path: "/plugins/reverb.vst3", Bypassed: false, StateBase64: "AAA="},
		},
		ChannelMode: 2,
	}

	if err := SaveFile(path, f); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.ProtocolVersion != protocolVersion {
		t.Fatalf("ProtocolVersion = %d, want %d", got.ProtocolVersion, protocolVersion)
	}
	if len(got.Plugins) != 1 || got.Plugins[0].Name != "Reverb" {
		t.Fatalf("Plugins = %+v, want one entry named Reverb", got.Plugins)
	}
}

func TestTargetsCollectsResolveFailuresAndContinues(t *testing.T) {
	f := File{
		Plugins: []PluginEntry{
			{Name: "Good"},
			{Name: "Bad"},
		},
	}

	targets, failures := f.Targets(func(entry PluginEntry) (Target, error) {
		if entry.Name == "Bad" {
			return Target{}, fmt.Errorf("not found")
		}
		return Target{Descriptor: descriptor(entry.Name)}, nil
	})

	if len(targets) != 1 {
		t.Fatalf("targets = %d, want 1", len(targets))
	}
	if len(failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(failures))
	}
}

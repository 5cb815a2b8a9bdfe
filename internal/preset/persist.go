package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// protocolVersion is the persisted-file format version. Bump when the
// File schema changes in a way Load cannot tolerate.
const protocolVersion = 1

// PluginEntry is one chain member in a persisted preset file.
type PluginEntry struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	DescriptorXML string `json:"descriptor_xml"`
	Bypassed      bool   `json:"bypassed"`
	StateBase64   string `json:"state_base64"`
}

// File is the on-disk layout of a .dppreset file (or a quick-slot file
// slot_A.dppreset .. slot_E.dppreset, which share the same schema).
type File struct {
	ProtocolVersion  int           `json:"protocol_version"`
	ActiveSlot       int           `json:"active_slot"`
	SampleRate       int           `json:"sample_rate"`
	BufferSize       int           `json:"buffer_size"`
	InputGain        float64       `json:"input_gain"`
	DeviceType       string        `json:"device_type"`
	InputDeviceName  string        `json:"input_device_name"`
	OutputDeviceName string        `json:"output_device_name"`
	Plugins          []PluginEntry `json:"plugins"`
	MonitorVolume    float64       `json:"monitor_volume"`
	MonitorEnabled   bool          `json:"monitor_enabled"`
	ChannelMode      int           `json:"channel_mode"`
	IPCEnabled       bool          `json:"ipc_enabled"`
}

// SlotPath returns the conventional quick-slot file name for slot, which
// must be in [0,4] corresponding to A..E.
func SlotPath(dir string, slot int) (string, error) {
	if slot < 0 || slot > 4 {
		return "", fmt.Errorf("preset: slot %d out of range [0,4]", slot)
	}
	letter := byte('A' + slot)
	return filepath.Join(dir, fmt.Sprintf("slot_%c.dppreset", letter)), nil
}

// LoadFile reads and parses a .dppreset file.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("preset: read %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("preset: parse %s: %w", path, err)
	}
	return f, nil
}

// SaveFile writes f to path as indented JSON.
func SaveFile(path string, f File) error {
	f.ProtocolVersion = protocolVersion
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("preset: marshal %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Targets converts a persisted file's plugin list into Target structs
// ready for Applier.Apply. Each entry is converted by resolve; entries that
// resolve rejects are reported in the returned errors and skipped. The
// descriptor XML captured at save time is opaque to this package: it is
// carried through unmodified in PluginEntry.DescriptorXML and is not used
// to load plugins here.
func (f File) Targets(resolve func(entry PluginEntry) (Target, error)) ([]Target, []error) {
	targets := make([]Target, 0, len(f.Plugins))
	var failures []error
	for _, entry := range f.Plugins {
		t, err := resolve(entry)
		if err != nil {
			failures = append(failures, fmt.Errorf("preset: resolve %s: %w", entry.Name, err))
			continue
		}
		targets = append(targets, t)
	}
	return targets, failures
}

// Package config manages persistent application preferences for the
// directpipe host. Settings are stored as JSON at
// os.UserConfigDir()/directpipe/config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all persistent application preferences, independent of
// any particular preset or quick slot.
type Config struct {
	InputDeviceID  int     `json:"input_device_id"`
	OutputDeviceID int     `json:"output_device_id"`
	SampleRate     int     `json:"sample_rate"`
	BufferSize     int     `json:"buffer_size"`
	ChannelMode    int     `json:"channel_mode"`
	InputGain      float64 `json:"input_gain"`
	MonitorVolume  float64 `json:"monitor_volume"`
	MonitorEnabled bool    `json:"monitor_enabled"`
	IPCEnabled     bool    `json:"ipc_enabled"`
	ActiveSlot     int     `json:"active_slot"`
	HTTPAddr       string  `json:"http_addr"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		InputDeviceID:  -1,
		OutputDeviceID: -1,
		SampleRate:     48000,
		BufferSize:     128,
		ChannelMode:    2,
		InputGain:      1.0,
		MonitorVolume:  1.0,
		MonitorEnabled: true,
		ActiveSlot:     0,
		HTTPAddr:       "127.0.0.1:9830",
	}
}

// Path returns the absolute path to the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "directpipe", "config.json"), nil
}

// Load reads the config file and returns it. If the file is missing or
// unreadable, the default config is returned, never an error.
func Load() Config {
	path, err := Path()
	if err != nil {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default()
	}
	return cfg
}

// Save writes cfg to disk, creating the directory if needed.
func Save(cfg Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

package config

import "testing"

func TestDefaultHasUsableFallbackDevices(t *testing.T) {
	cfg := Default()
	if cfg.InputDeviceID != -1 || cfg.OutputDeviceID != -1 {
		t.Fatalf("default device IDs = %d,%d, want -1,-1 (system default)", cfg.InputDeviceID, cfg.OutputDeviceID)
	}
	if cfg.ChannelMode != 2 {
		t.Fatalf("default ChannelMode = %d, want 2", cfg.ChannelMode)
	}
	if cfg.InputGain != 1.0 {
		t.Fatalf("default InputGain = %v, want 1.0", cfg.InputGain)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.InputGain = 2.5
	cfg.ActiveSlot = 3
	cfg.HTTPAddr = "0.0.0.0:8000"

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := Load()
	if got.InputGain != 2.5 || got.ActiveSlot != 3 || got.HTTPAddr != "0.0.0.0:8000" {
		t.Fatalf("Load() = %+v, want InputGain=2.5 ActiveSlot=3 HTTPAddr=0.0.0.0:8000", got)
	}
}

func TestLoadWithoutExistingFileReturnsDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	got := Load()
	want := Default()
	if got != want {
		t.Fatalf("Load() without a saved file = %+v, want default %+v", got, want)
	}
}

package control

import "encoding/json"

// PluginState is the broadcaster's view of one chain slot.
type PluginState struct {
	Name     string
	Bypassed bool
	Loaded   bool
}

// AppState is the canonical snapshot published to subscribers. Field
// names follow the internal model; ToJSON renders them into the wire
// schema.
type AppState struct {
	Plugins []PluginState

	InputGain      float64
	MonitorVolume  float64
	MasterBypassed bool
	Muted          bool
	OutputMuted    bool
	InputMuted     bool
	CurrentPreset  string

	LatencyMs        float64
	MonitorLatencyMs float64
	InputLevelDb     float64
	CPUPercent       float64

	SampleRate  float64
	BufferSize  int
	ChannelMode int // 1 or 2

	MonitorEnabled bool
	ActiveSlot     int // 0..4

	Recording        bool
	RecordingSeconds float64
}

type wirePluginState struct {
	Name   string `json:"name"`
	Bypass bool   `json:"bypass"`
	Loaded bool   `json:"loaded"`
}

type wireVolumes struct {
	Input   float64 `json:"input"`
	Monitor float64 `json:"monitor"`
}

type wireStateData struct {
	Plugins          []wirePluginState `json:"plugins"`
	Volumes          wireVolumes       `json:"volumes"`
	MasterBypassed   bool              `json:"master_bypassed"`
	Muted            bool              `json:"muted"`
	OutputMuted      bool              `json:"output_muted"`
	InputMuted       bool              `json:"input_muted"`
	Preset           string            `json:"preset"`
	LatencyMs        float64           `json:"latency_ms"`
	MonitorLatencyMs float64           `json:"monitor_latency_ms"`
	LevelDb          float64           `json:"level_db"`
	CPUPercent       float64           `json:"cpu_percent"`
	SampleRate       float64           `json:"sample_rate"`
	BufferSize       int               `json:"buffer_size"`
	ChannelMode      int               `json:"channel_mode"`
	MonitorEnabled   bool              `json:"monitor_enabled"`
	ActiveSlot       int               `json:"active_slot"`
	Recording        bool              `json:"recording"`
	RecordingSeconds float64           `json:"recording_seconds"`
}

type wireStateMessage struct {
	Type string        `json:"type"`
	Data wireStateData `json:"data"`
}

// ToJSON serializes the state per the published state schema.
func (s AppState) ToJSON() ([]byte, error) {
	plugins := make([]wirePluginState, len(s.Plugins))
	for i, p := range s.Plugins {
		plugins[i] = wirePluginState{Name: p.Name, Bypass: p.Bypassed, Loaded: p.Loaded}
	}

	msg := wireStateMessage{
		Type: "state",
		Data: wireStateData{
			Plugins:          plugins,
			Volumes:          wireVolumes{Input: s.InputGain, Monitor: s.MonitorVolume},
			MasterBypassed:   s.MasterBypassed,
			Muted:            s.Muted,
			OutputMuted:      s.OutputMuted,
			InputMuted:       s.InputMuted,
			Preset:           s.CurrentPreset,
			LatencyMs:        s.LatencyMs,
			MonitorLatencyMs: s.MonitorLatencyMs,
			LevelDb:          s.InputLevelDb,
			CPUPercent:       s.CPUPercent,
			SampleRate:       s.SampleRate,
			BufferSize:       s.BufferSize,
			ChannelMode:      s.ChannelMode,
			MonitorEnabled:   s.MonitorEnabled,
			ActiveSlot:       s.ActiveSlot,
			Recording:        s.Recording,
			RecordingSeconds: s.RecordingSeconds,
		},
	}
	return json.Marshal(msg)
}

package control

import (
	"encoding/json"
	"fmt"
)

type wireActionMessage struct {
	Type   string          `json:"type"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

type actionParams struct {
	Index       *int     `json:"index"`
	Target      *string  `json:"target"`
	Value       *float64 `json:"value"`
	Delta       *float64 `json:"delta"`
	Slot        *int     `json:"slot"`
	PluginIndex *int     `json:"pluginIndex"`
	ParamIndex  *int     `json:"paramIndex"`
}

// ParseActionMessage decodes a wire-format action message into an
// ActionEvent. Unknown action names produce an error so the caller can
// silently ignore the message per the schema's contract.
func ParseActionMessage(raw []byte) (ActionEvent, error) {
	var msg wireActionMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ActionEvent{}, fmt.Errorf("control: decode action message: %w", err)
	}

	action, ok := ParseAction(msg.Action)
	if !ok {
		return ActionEvent{}, fmt.Errorf("control: unrecognized action %q", msg.Action)
	}

	var params actionParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return ActionEvent{}, fmt.Errorf("control: decode params: %w", err)
		}
	}

	event := ActionEvent{Action: action}
	switch action {
	case ActionPluginBypass, ActionLoadPreset:
		if params.Index != nil {
			event.IntParam = *params.Index
		}
	case ActionSetVolume:
		if params.Target != nil {
			event.StringParam = *params.Target
		}
		if params.Value != nil {
			event.FloatParam = *params.Value
		}
	case ActionToggleMute:
		if params.Target != nil {
			event.StringParam = *params.Target
		}
	case ActionInputGainAdjust:
		if params.Delta != nil {
			event.FloatParam = *params.Delta
		}
	case ActionSwitchPresetSlot:
		if params.Slot != nil {
			event.IntParam = *params.Slot
		}
	case ActionSetPluginParameter:
		if params.PluginIndex != nil {
			event.IntParam = *params.PluginIndex
		}
		if params.ParamIndex != nil {
			event.IntParam2 = *params.ParamIndex
		}
		if params.Value != nil {
			event.FloatParam = *params.Value
		}
	}

	return event, nil
}

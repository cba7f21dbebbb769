package flow

import (
	"encoding/json"
	"fmt"
)

// MaxPayloadBytes is the callback_data limit of the Bot API.
const MaxPayloadBytes = 64

type buttonPayload struct {
	Value      string `json:"v,omitempty"`
	SaveTo     string `json:"s,omitempty"`
	NextStepID string `json:"n,omitempty"`
	NextFlow   string `json:"f,omitempty"`
}

// Payload encodes the button's value and transition as the compact JSON carried in
// callback data. It fails when the encoding exceeds MaxPayloadBytes.
func (b Button) Payload() (string, error) {
	raw, err := json.Marshal(buttonPayload{
		Value:      b.Value,
		SaveTo:     b.SaveToVariable,
		NextStepID: b.NextStepID,
		NextFlow:   b.NextFlow,
	})
	if err != nil {
		return "", err
	}
	if len(raw) > MaxPayloadBytes {
		return "", fmt.Errorf("button %q payload is %d bytes, limit %d", b.Text, len(raw), MaxPayloadBytes)
	}
	return string(raw), nil
}

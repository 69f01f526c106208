package contracts

import (
	"encoding/json"
	"errors"
	"strings"
)

// Frame is the minimal wire envelope shared by every transport:
// {"type": "<event name>", "data": <payload>}.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

var ErrEmptyFrameType = errors.New("frame type is required")

// NewFrame marshals payload into a frame tagged with event. A nil payload
// yields a frame without data.
func NewFrame(event string, payload any) (Frame, error) {
	if strings.TrimSpace(event) == "" {
		return Frame{}, ErrEmptyFrameType
	}
	if payload == nil {
		return Frame{Type: event}, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return Frame{Type: event, Data: raw}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: event, Data: data}, nil
}

// DecodeFrame parses a raw message into a frame.
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, err
	}
	if strings.TrimSpace(f.Type) == "" {
		return Frame{}, ErrEmptyFrameType
	}
	return f, nil
}

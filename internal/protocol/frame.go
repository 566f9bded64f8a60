package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Frame is an inbound client message: a command type plus an optional payload.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope is an outbound server message. Timestamp is ISO-8601 UTC.
type Envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewEnvelope stamps an outbound event with the current UTC time.
func NewEnvelope(eventType string, payload interface{}) Envelope {
	return Envelope{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ErrInvalidMessage covers unparseable frames; ErrUnknownCommand covers
// well-formed frames whose type is not in the closed command set.
var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrUnknownCommand = errors.New("unknown command")
)

// ParseFrame decodes and validates one inbound text frame.
func ParseFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}
	if !KnownCommand(f.Type) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, f.Type)
	}
	return &f, nil
}

// Decode unmarshals a frame payload into a command struct.
func (f *Frame) Decode(v interface{}) error {
	if len(f.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("%w: bad %s payload: %v", ErrInvalidMessage, f.Type, err)
	}
	return nil
}

// Package protocol defines the JSON command envelope exchanged between
// controllers, the relay server, and receptor clients, together with the
// validated decode step every receiver runs before acting on a frame.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// TypeJointUpdate is the only message type receptors act on today.
const TypeJointUpdate = "joint_update"

var (
	// ErrMalformed is returned for payloads that are not a well-formed
	// command envelope.
	ErrMalformed = errors.New("malformed command message")
	// ErrNotJointUpdate is returned by Message.JointUpdate for other types.
	ErrNotJointUpdate = errors.New("message is not a joint update")
	// ErrUnknownAction is returned by ParseAction for unrecognized actions.
	ErrUnknownAction = errors.New("unknown joint action")
)

// Message is the wire envelope. Unknown fields are ignored on decode so new
// message types and attributes can be introduced without breaking peers.
type Message struct {
	Type      string  `json:"type"`
	Joint     string  `json:"joint,omitempty"`
	Value     float64 `json:"value"`
	Action    string  `json:"action,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// Action is the direction of an incremental joint move.
type Action string

// Recognized actions.
const (
	ActionIncrease Action = "increase"
	ActionDecrease Action = "decrease"
)

// ParseAction maps the wire string onto an Action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionIncrease, ActionDecrease:
		return Action(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Delta returns +1 for an increase and -1 for a decrease.
func (a Action) Delta() float64 {
	if a == ActionIncrease {
		return 1
	}
	return -1
}

// JointUpdate is the typed event carried by a joint_update message.
type JointUpdate struct {
	Joint  string
	Value  float64
	Action Action
}

// Envelope is the type-agnostic view of a frame: the only field every
// message type shares. Relays route on it without knowing the payload shape.
type Envelope struct {
	Type string
}

// DecodeEnvelope checks that raw is a JSON object and extracts its type.
// The other fields are not inspected, so frames of types this package does
// not know about pass unchanged. A non-string "type" reads as empty.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	trimmed, err := jsonObject(raw)
	if err != nil {
		return Envelope{}, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var env Envelope
	if rawType, ok := fields["type"]; ok {
		_ = json.Unmarshal(rawType, &env.Type)
	}
	return env, nil
}

// Decode validates raw as a typed command message. Anything other than a
// JSON object whose known fields carry the expected JSON types is malformed.
func Decode(raw []byte) (Message, error) {
	trimmed, err := jsonObject(raw)
	if err != nil {
		return Message{}, err
	}

	var msg Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

func jsonObject(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformed)
	}
	return trimmed, nil
}

// Encode serializes msg to its wire form.
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// JointUpdate extracts the typed joint event from m.
func (m Message) JointUpdate() (JointUpdate, error) {
	if m.Type != TypeJointUpdate {
		return JointUpdate{}, ErrNotJointUpdate
	}
	if m.Joint == "" {
		return JointUpdate{}, fmt.Errorf("%w: joint is required", ErrMalformed)
	}

	action, err := ParseAction(m.Action)
	if err != nil {
		return JointUpdate{}, err
	}

	return JointUpdate{Joint: m.Joint, Value: m.Value, Action: action}, nil
}

// NewJointUpdate builds a joint_update message.
func NewJointUpdate(joint string, value float64, action Action) Message {
	return Message{
		Type:   TypeJointUpdate,
		Joint:  joint,
		Value:  value,
		Action: string(action),
	}
}

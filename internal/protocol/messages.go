package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientTurn   MessageType = "client_turn"
	TypeTurnSnapshot MessageType = "turn_snapshot"
	TypeSystemEvent  MessageType = "system_event"
	TypeErrorEvent   MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// Turn mirrors one committed or in-flight conversation message for display.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ClientTurn carries one user input submission.
type ClientTurn struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

// TurnSnapshot is one full rendering of the visible conversation. ClearInput
// tells the client to empty its input box; Final marks the last snapshot of
// the turn.
type TurnSnapshot struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	ClearInput bool        `json:"clear_input"`
	History    []Turn      `json:"history"`
	Final      bool        `json:"final"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage validates and decodes one inbound websocket payload.
// Whitespace-only turn text is allowed through: the service treats it as a
// no-op turn rather than a protocol error.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientTurn:
		var msg ClientTurn
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, errors.New("invalid client_turn: missing session_id")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClientTurn(t *testing.T) {
	raw := []byte(`{"type":"client_turn","session_id":"12345_1700000000000_54321","text":"hello"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage error: %v", err)
	}
	turn, ok := msg.(ClientTurn)
	if !ok {
		t.Fatalf("parsed message type %T", msg)
	}
	if turn.SessionID != "12345_1700000000000_54321" || turn.Text != "hello" {
		t.Fatalf("parsed turn = %+v", turn)
	}
}

func TestParseClientTurnAllowsWhitespaceText(t *testing.T) {
	raw := []byte(`{"type":"client_turn","session_id":"s1","text":"   "}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("whitespace text rejected: %v", err)
	}
	if msg.(ClientTurn).Text != "   " {
		t.Fatalf("whitespace text altered: %+v", msg)
	}
}

func TestParseClientTurnRequiresSessionID(t *testing.T) {
	raw := []byte(`{"type":"client_turn","session_id":" ","text":"hello"}`)
	if _, err := ParseClientMessage(raw); err == nil {
		t.Fatalf("missing session id accepted")
	}
}

func TestParseRejectsUnknownType(t *testing.T) {
	raw := []byte(`{"type":"telemetry","session_id":"s1"}`)
	_, err := ParseClientMessage(raw)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":`)); err == nil {
		t.Fatalf("malformed payload accepted")
	}
}

func TestTurnSnapshotWireShape(t *testing.T) {
	snap := TurnSnapshot{
		Type:       TypeTurnSnapshot,
		SessionID:  "s1",
		ClearInput: true,
		History: []Turn{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
		Final: true,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	for _, key := range []string{"type", "session_id", "clear_input", "history", "final"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("wire payload missing %q: %s", key, data)
		}
	}
	if decoded["type"] != "turn_snapshot" {
		t.Errorf("type = %v", decoded["type"])
	}
}

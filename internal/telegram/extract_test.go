package telegram

import (
	"encoding/json"
	"testing"
)

func TestExtractEventMessage(t *testing.T) {
	raw := json.RawMessage(`{
		"update_id": 1,
		"message": {
			"message_id": 10,
			"from": {"id": 777, "username": "alice", "first_name": "Alice"},
			"chat": {"id": 777},
			"text": "/start"
		}
	}`)

	ev := ExtractEvent(raw)
	if ev.Kind != EventMessage {
		t.Fatalf("kind = %q, want message", ev.Kind)
	}
	if ev.ChatID != "777" || ev.UserID != "777" || ev.Username != "alice" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !ev.IsCommand() {
		t.Fatalf("/start not recognized as command")
	}
}

func TestExtractEventCallback(t *testing.T) {
	raw := json.RawMessage(`{
		"update_id": 2,
		"callback_query": {
			"id": "cb-1",
			"from": {"id": 888, "first_name": "Bob"},
			"message": {"message_id": 11, "chat": {"id": 888}},
			"data": "buy_plan_2"
		}
	}`)

	ev := ExtractEvent(raw)
	if ev.Kind != EventCallback {
		t.Fatalf("kind = %q, want callback_query", ev.Kind)
	}
	if ev.CallbackID != "cb-1" || ev.CallbackData != "buy_plan_2" || ev.ChatID != "888" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.IsCommand() {
		t.Fatalf("callback reported as command")
	}
}

func TestExtractEventUnsupportedShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"malformed", `{"update_id": `},
		{"edited message", `{"update_id":3,"edited_message":{"message_id":1}}`},
		{"empty object", `{}`},
		{"message without chat", `{"update_id":4,"message":{"message_id":1,"text":"x"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if ev := ExtractEvent(json.RawMessage(tc.raw)); ev.Kind != EventNone {
				t.Fatalf("kind = %q, want none", ev.Kind)
			}
		})
	}
}

func TestIsCommandPlainText(t *testing.T) {
	ev := ExtractedEvent{Kind: EventMessage, Text: "hello"}
	if ev.IsCommand() {
		t.Fatalf("plain text reported as command")
	}
}

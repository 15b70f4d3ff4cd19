// Package telegram — update normalization.
//
// Webhook payloads come in two shapes the relay cares about (plain message
// and callback query); everything else normalizes to EventNone and is dropped
// by the worker without side effects.
package telegram

import (
	"encoding/json"
	"strconv"
)

// EventKind classifies an extracted update.
type EventKind string

const (
	// EventNone marks updates the relay does not process.
	EventNone EventKind = ""
	// EventMessage is a plain chat message.
	EventMessage EventKind = "message"
	// EventCallback is an inline-keyboard press.
	EventCallback EventKind = "callback_query"
)

// ExtractedEvent is the flattened view of one update: just the routing and
// content fields the worker dispatches on. Derived, never persisted.
type ExtractedEvent struct {
	Kind         EventKind
	ChatID       string
	UserID       string
	Username     string
	FirstName    string
	Text         string
	CallbackData string
	CallbackID   string
}

// IsCommand reports whether the event text is a bot command.
func (e ExtractedEvent) IsCommand() bool {
	return e.Kind == EventMessage && len(e.Text) > 0 && e.Text[0] == '/'
}

// ExtractEvent normalizes a raw update payload. Malformed JSON or an
// unsupported update shape yields an event with Kind == EventNone.
func ExtractEvent(raw json.RawMessage) ExtractedEvent {
	var u Update
	if err := json.Unmarshal(raw, &u); err != nil {
		return ExtractedEvent{}
	}

	switch {
	case u.Message != nil && u.Message.Chat != nil:
		ev := ExtractedEvent{
			Kind:   EventMessage,
			ChatID: strconv.FormatInt(u.Message.Chat.ID, 10),
			Text:   u.Message.Text,
		}
		if from := u.Message.From; from != nil {
			ev.UserID = strconv.FormatInt(from.ID, 10)
			ev.Username = from.Username
			ev.FirstName = from.FirstName
		}
		return ev

	case u.CallbackQuery != nil:
		cb := u.CallbackQuery
		ev := ExtractedEvent{
			Kind:         EventCallback,
			CallbackData: cb.Data,
			CallbackID:   cb.ID,
		}
		if cb.Message != nil && cb.Message.Chat != nil {
			ev.ChatID = strconv.FormatInt(cb.Message.Chat.ID, 10)
		}
		if from := cb.From; from != nil {
			ev.UserID = strconv.FormatInt(from.ID, 10)
			ev.Username = from.Username
			ev.FirstName = from.FirstName
		}
		return ev
	}

	return ExtractedEvent{}
}

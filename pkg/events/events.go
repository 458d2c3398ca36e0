package events

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Completion progress events published while a backend streams a reply.
// UIs subscribe to render the growing assistant message.

type EventType string

const (
	EventTypeStart     EventType = "start"
	EventTypePartial   EventType = "partial"
	EventTypeFinal     EventType = "final"
	EventTypeError     EventType = "error"
	EventTypeInterrupt EventType = "interrupt"
)

// EventMetadata ties an event to the chat and level it belongs to.
type EventMetadata struct {
	ChatID uuid.UUID `json:"chat_id"`
	Level  int       `json:"level"`
}

// ChatEvent is what the publisher manager accepts: every event type embeds
// Event and carries its type tag through it.
type ChatEvent interface {
	EventType() EventType
}

type Event struct {
	Type     EventType     `json:"type"`
	Metadata EventMetadata `json:"meta,omitempty"`
	Error    string        `json:"error,omitempty"`

	payload []byte
}

func (e Event) EventType() EventType { return e.Type }

// EventPartialCompletion carries one streamed delta plus the accumulated
// completion so far.
type EventPartialCompletion struct {
	Event
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

type EventText struct {
	Event
	Text string `json:"text"`
}

func NewStartEvent(metadata EventMetadata) *Event {
	return &Event{Type: EventTypeStart, Metadata: metadata}
}

func NewPartialCompletionEvent(metadata EventMetadata, delta, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		Event:      Event{Type: EventTypePartial, Metadata: metadata},
		Delta:      delta,
		Completion: completion,
	}
}

func NewFinalEvent(metadata EventMetadata, text string) *EventText {
	return &EventText{
		Event: Event{Type: EventTypeFinal, Metadata: metadata},
		Text:  text,
	}
}

func NewErrorEvent(metadata EventMetadata, err error) *Event {
	return &Event{Type: EventTypeError, Metadata: metadata, Error: err.Error()}
}

func NewInterruptEvent(metadata EventMetadata, text string) *EventText {
	return &EventText{
		Event: Event{Type: EventTypeInterrupt, Metadata: metadata},
		Text:  text,
	}
}

// NewEventFromJson recovers an event from its wire form.
func NewEventFromJson(b []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(b, &e)
	if err != nil {
		return Event{}, err
	}

	e.payload = b

	return e, nil
}

func (e Event) ToPartialCompletion() (EventPartialCompletion, bool) {
	var ret EventPartialCompletion
	err := json.Unmarshal(e.payload, &ret)
	if err != nil {
		return EventPartialCompletion{}, false
	}

	return ret, true
}

func (e Event) ToText() (EventText, bool) {
	var ret EventText
	err := json.Unmarshal(e.payload, &ret)
	if err != nil {
		return EventText{}, false
	}

	return ret, true
}

package core

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/dkeye/RoomChat/internal/domain"
)

type EventType string

const (
	EventJoin       EventType = "join"
	EventChat       EventType = "chat"
	EventTyping     EventType = "typing"
	EventStopTyping EventType = "stop_typing"
	EventSwitchRoom EventType = "switch_room"
	EventSystem     EventType = "system"
	EventPing       EventType = "ping"
	EventPong       EventType = "pong"
	EventWhoAmI     EventType = "whoami"
)

// Event is the single wire shape for every kind; unused fields are omitted.
type Event struct {
	Type     EventType       `json:"type"`
	Username string          `json:"username,omitempty"`
	Room     domain.RoomName `json:"room,omitempty"`
	Message  string          `json:"message,omitempty"`
}

func SystemEvent(msg string) Event {
	return Event{Type: EventSystem, Message: msg}
}

func JoinedNotice(username string, room domain.RoomName) Event {
	return SystemEvent(fmt.Sprintf("%s joined %s", username, room))
}

func LeftNotice(username string, room domain.RoomName) Event {
	return SystemEvent(fmt.Sprintf("%s left %s", username, room))
}

// DecodeEvent parses a frame. Unknown fields are ignored; a frame that is not
// a JSON object is an error.
func DecodeEvent(f Frame) (Event, error) {
	var ev Event
	if err := json.Unmarshal(f, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

func EncodeEvent(ev Event) (Frame, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

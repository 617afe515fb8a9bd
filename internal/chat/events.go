package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Client -> server event names.
const (
	EventUserJoin     = "user_join"
	EventJoinRoom     = "join_room"
	EventSendMessage  = "send_message"
	EventTypingStart  = "typing_start"
	EventTypingStop   = "typing_stop"
	EventStatusUpdate = "status_update"
)

// Server -> client event names.
const (
	EventUsersUpdate    = "users_update"
	EventRoomMessages   = "room_messages"
	EventNewMessage     = "new_message"
	EventUserTyping     = "user_typing"
	EventUserStopTyping = "user_stop_typing"
)

var (
	ErrUnknownEvent     = errors.New("unknown event")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Frame is the wire envelope used in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ---------------------------------------------
// Outbound events
// ---------------------------------------------

// Event is a server -> client event ready to be encoded.
type Event struct {
	Name string
	Data any
}

// MarshalJSON encodes the event as a Frame.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{e.Name, e.Data})
}

// TypingNotice is the payload of user_typing and user_stop_typing.
type TypingNotice struct {
	User string `json:"user"`
	Room string `json:"room"`
}

func usersUpdate(users []User) Event {
	return Event{Name: EventUsersUpdate, Data: users}
}

func roomMessages(roomID string, messages []Message) Event {
	return Event{Name: EventRoomMessages, Data: History{Room: roomID, Messages: messages}}
}

func newMessage(msg Message) Event {
	return Event{Name: EventNewMessage, Data: msg}
}

func typingNotice(started bool, user, roomID string) Event {
	ev := Event{Name: EventUserStopTyping, Data: TypingNotice{User: user, Room: roomID}}
	if started {
		ev.Name = EventUserTyping
	}
	return ev
}

// ---------------------------------------------
// Inbound commands
// ---------------------------------------------

// Command is one decoded client -> server event.
type Command interface {
	EventName() string
}

// JoinCommand registers the connection's profile.
type JoinCommand struct {
	Profile Profile
}

// JoinRoomCommand subscribes the connection to a room.
type JoinRoomCommand struct {
	Room string
}

// SendCommand posts a message; Room is already defaulted.
type SendCommand struct {
	Text string
	Room string
}

// TypingCommand relays a typing start or stop.
type TypingCommand struct {
	Room    string
	Started bool
}

// StatusCommand replaces the connection's status.
type StatusCommand struct {
	Status string
}

func (JoinCommand) EventName() string     { return EventUserJoin }
func (JoinRoomCommand) EventName() string { return EventJoinRoom }
func (SendCommand) EventName() string     { return EventSendMessage }
func (StatusCommand) EventName() string   { return EventStatusUpdate }

func (c TypingCommand) EventName() string {
	if c.Started {
		return EventTypingStart
	}
	return EventTypingStop
}

// DecodeCommand parses and validates a single inbound frame.
func DecodeCommand(raw []byte) (Command, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", ErrMalformedPayload)
	}

	switch frame.Event {
	case EventUserJoin:
		// A missing or malformed profile falls back to defaults.
		var profile Profile
		if !isNull(frame.Data) {
			if err := json.Unmarshal(frame.Data, &profile); err != nil {
				profile = Profile{}
			}
		}
		return JoinCommand{Profile: profile}, nil

	case EventJoinRoom:
		room, err := decodeString(frame.Data)
		if err != nil || room == "" {
			return nil, fmt.Errorf("%s: %w", frame.Event, ErrMalformedPayload)
		}
		return JoinRoomCommand{Room: room}, nil

	case EventSendMessage:
		var payload struct {
			Message string `json:"message"`
			Room    string `json:"room"`
		}
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return nil, fmt.Errorf("%s: %w", frame.Event, ErrMalformedPayload)
		}
		// Any text is accepted, blank included; the hub only checks the
		// sender's profile and the room.
		if payload.Room == "" {
			payload.Room = DefaultRoom
		}
		return SendCommand{Text: payload.Message, Room: payload.Room}, nil

	case EventTypingStart, EventTypingStop:
		var payload struct {
			Room string `json:"room"`
		}
		if err := json.Unmarshal(frame.Data, &payload); err != nil || payload.Room == "" {
			return nil, fmt.Errorf("%s: %w", frame.Event, ErrMalformedPayload)
		}
		return TypingCommand{Room: payload.Room, Started: frame.Event == EventTypingStart}, nil

	case EventStatusUpdate:
		status, err := decodeString(frame.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", frame.Event, ErrMalformedPayload)
		}
		return StatusCommand{Status: status}, nil
	}

	return nil, fmt.Errorf("%q: %w", frame.Event, ErrUnknownEvent)
}

func decodeString(data json.RawMessage) (string, error) {
	if isNull(data) {
		return "", ErrMalformedPayload
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", err
	}
	return s, nil
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

package chat

import (
	"errors"
	"fmt"
	"sync"
)

// ErrRoomNotFound is returned for room ids outside the fixed set.
var ErrRoomNotFound = errors.New("room not found")

// RoomStore holds the fixed rooms and their bounded histories.
type RoomStore struct {
	mu         sync.RWMutex
	order      []string
	rooms      map[string]*Room
	maxHistory int
}

// NewRoomStore creates the given rooms, each keeping at most maxHistory
// messages. A non-positive maxHistory means MaxHistory.
func NewRoomStore(maxHistory int, ids ...string) *RoomStore {
	if maxHistory <= 0 {
		maxHistory = MaxHistory
	}
	if len(ids) == 0 {
		ids = DefaultRooms
	}

	s := &RoomStore{
		rooms:      make(map[string]*Room, len(ids)),
		maxHistory: maxHistory,
	}
	for _, id := range ids {
		if _, dup := s.rooms[id]; dup {
			continue
		}
		s.order = append(s.order, id)
		s.rooms[id] = &Room{ID: id, Name: id, Messages: make([]Message, 0)}
	}
	return s
}

// Find returns a copy of the room with its current history.
func (s *RoomStore) Find(roomID string) (Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return Room{ID: room.ID, Name: room.Name, Messages: cloneMessages(room.Messages)}, true
}

// Append stores msg in the room named by msg.Room, evicting the oldest
// entries beyond the history limit.
func (s *RoomStore) Append(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[msg.Room]
	if !ok {
		return fmt.Errorf("append to %q: %w", msg.Room, ErrRoomNotFound)
	}

	room.Messages = append(room.Messages, msg)
	if n := len(room.Messages); n > s.maxHistory {
		// Copy into a fresh slice so the evicted prefix can be collected.
		room.Messages = cloneMessages(room.Messages[n-s.maxHistory:])
	}
	return nil
}

// Snapshot returns the room's history in append order.
func (s *RoomStore) Snapshot(roomID string) ([]Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	return cloneMessages(room.Messages), true
}

// Summaries lists every room in startup order.
func (s *RoomStore) Summaries() []RoomSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RoomSummary, 0, len(s.order))
	for _, id := range s.order {
		room := s.rooms[id]
		summary := RoomSummary{
			ID:           room.ID,
			Name:         room.Name,
			MessageCount: len(room.Messages),
		}
		if n := len(room.Messages); n > 0 {
			last := room.Messages[n-1]
			summary.LastMessage = &last
		}
		out = append(out, summary)
	}
	return out
}

// TotalMessages counts the messages held across all rooms.
func (s *RoomStore) TotalMessages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, room := range s.rooms {
		total += len(room.Messages)
	}
	return total
}

func cloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	copy(out, in)
	return out
}

package chat

import "time"

// ---------------------------------------------
// Domain models
// ---------------------------------------------

const (
	DefaultRoom   = "general"
	DefaultName   = "Anonymous"
	DefaultAvatar = "👤"
	DefaultStatus = "online"

	// MaxHistory is how many messages a room keeps before evicting the oldest.
	MaxHistory = 100

	MessageTypeText = "text"

	// timestampLayout renders the short clock time shown next to a message.
	timestampLayout = "15:04"
)

// DefaultRooms is the fixed set of rooms created at startup, in listing order.
var DefaultRooms = []string{"general", "development", "design", "random"}

// User is the profile of a connection that completed user_join.
// ID is the connection id.
type User struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Profile is the optional identity a client sends with user_join.
type Profile struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Message is a stored chat message. It is never mutated after creation.
type Message struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Avatar    string    `json:"avatar"`
	Text      string    `json:"message"`
	Timestamp string    `json:"timestamp"`
	Room      string    `json:"room"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// Room is a fixed channel with its bounded history.
type Room struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Messages []Message `json:"messages"`
}

// RoomSummary is the listing view of a room.
type RoomSummary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MessageCount int      `json:"messageCount"`
	LastMessage  *Message `json:"lastMessage"`
}

// Health is the status snapshot served to the health endpoint.
type Health struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	ConnectedUsers int    `json:"connectedUsers"`
	TotalMessages  int    `json:"totalMessages"`
}

// History is the reply body of a room history lookup.
type History struct {
	Room     string    `json:"room"`
	Messages []Message `json:"messages"`
}

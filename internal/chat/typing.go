package chat

// TypingCoordinator relays typing signals to a room. It stores nothing.
type TypingCoordinator struct {
	users       *Registry
	broadcaster *Broadcaster
}

func NewTypingCoordinator(users *Registry, b *Broadcaster) *TypingCoordinator {
	return &TypingCoordinator{users: users, broadcaster: b}
}

// Start tells the room's other subscribers that connID is typing.
func (t *TypingCoordinator) Start(connID, roomID string) {
	t.relay(connID, roomID, true)
}

// Stop tells the room's other subscribers that connID stopped typing.
func (t *TypingCoordinator) Stop(connID, roomID string) {
	t.relay(connID, roomID, false)
}

func (t *TypingCoordinator) relay(connID, roomID string, started bool) {
	user, ok := t.users.Get(connID)
	if !ok {
		return
	}
	t.broadcaster.ToRoom(roomID, typingNotice(started, user.Name, roomID), ExcludeSender(connID))
}

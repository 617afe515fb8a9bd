package chat

// PresenceTracker turns registry changes into users_update broadcasts.
type PresenceTracker struct {
	broadcaster *Broadcaster
}

func NewPresenceTracker(b *Broadcaster) *PresenceTracker {
	return &PresenceTracker{broadcaster: b}
}

// UsersChanged sends the full user list to every connection.
func (p *PresenceTracker) UsersChanged(users []User) {
	p.broadcaster.ToAll(usersUpdate(users))
}

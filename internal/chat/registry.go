package chat

import (
	"sync"
	"time"
)

// PresenceNotifier is told about every visible change to the registry.
// users is the full snapshot taken right after the change.
type PresenceNotifier interface {
	UsersChanged(users []User)
}

// Registry maps live connections to their user profiles.
type Registry struct {
	mu       sync.RWMutex
	users    map[string]*User
	order    []string
	now      func() time.Time
	notifier PresenceNotifier
}

// NewRegistry creates an empty registry. notifier may be nil.
func NewRegistry(now func() time.Time, notifier PresenceNotifier) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		users:    make(map[string]*User),
		now:      now,
		notifier: notifier,
	}
}

// Register stores a profile for connID, overwriting any previous one.
func (r *Registry) Register(connID string, profile Profile) User {
	user := User{
		ID:       connID,
		Name:     profile.Name,
		Avatar:   profile.Avatar,
		Status:   DefaultStatus,
		JoinedAt: r.now(),
	}
	if user.Name == "" {
		user.Name = DefaultName
	}
	if user.Avatar == "" {
		user.Avatar = DefaultAvatar
	}

	r.mu.Lock()
	if _, exists := r.users[connID]; !exists {
		r.order = append(r.order, connID)
	}
	stored := user
	r.users[connID] = &stored
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snapshot)
	return user
}

// Unregister drops the profile of connID if there is one.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	if _, exists := r.users[connID]; !exists {
		r.mu.Unlock()
		return false
	}
	delete(r.users, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snapshot)
	return true
}

// Get returns the profile of connID.
func (r *Registry) Get(connID string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[connID]
	if !ok {
		return User{}, false
	}
	return *user, true
}

// UpdateStatus replaces the status of connID. Unknown connections are ignored.
func (r *Registry) UpdateStatus(connID, status string) bool {
	r.mu.Lock()
	user, ok := r.users[connID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	user.Status = status
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snapshot)
	return true
}

// Users returns every profile in registration order.
func (r *Registry) Users() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Count is the number of joined connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *Registry) snapshotLocked() []User {
	out := make([]User, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.users[id])
	}
	return out
}

func (r *Registry) notify(users []User) {
	if r.notifier != nil {
		r.notifier.UsersChanged(users)
	}
}

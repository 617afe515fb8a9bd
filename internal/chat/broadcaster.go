package chat

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Subscriber is one connected client as seen by the Broadcaster.
type Subscriber interface {
	ID() string
	// Deliver queues an encoded event without blocking. It reports false
	// when the client could not take it.
	Deliver(payload []byte) bool
	// Close ends the subscriber's outbound queue.
	Close()
}

// RoomDelivery controls who in a room receives an event.
type RoomDelivery struct {
	Sender        string
	ExcludeSender bool
}

// IncludeSender delivers to every subscriber of the room, sender included.
func IncludeSender(sender string) RoomDelivery {
	return RoomDelivery{Sender: sender}
}

// ExcludeSender delivers to every subscriber of the room except sender.
func ExcludeSender(sender string) RoomDelivery {
	return RoomDelivery{Sender: sender, ExcludeSender: true}
}

// Broadcaster fans events out to connected clients, either globally or
// per room subscription. A client that cannot take an event is detached on
// the spot and parked in evicted until the hub collects it.
type Broadcaster struct {
	mu      sync.RWMutex
	conns   map[string]Subscriber
	rooms   map[string]map[string]struct{} // roomID -> connIDs
	joined  map[string]map[string]struct{} // connID -> roomIDs
	evicted []Subscriber
	logger  *slog.Logger
}

func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		conns:  make(map[string]Subscriber),
		rooms:  make(map[string]map[string]struct{}),
		joined: make(map[string]map[string]struct{}),
		logger: logger,
	}
}

// Attach adds a connection to the global audience.
func (b *Broadcaster) Attach(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[sub.ID()] = sub
}

// Detach removes a connection and all of its room subscriptions.
func (b *Broadcaster) Detach(connID string) (Subscriber, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.detachLocked(connID)
}

func (b *Broadcaster) detachLocked(connID string) (Subscriber, bool) {
	sub, ok := b.conns[connID]
	if !ok {
		return nil, false
	}
	delete(b.conns, connID)
	for roomID := range b.joined[connID] {
		delete(b.rooms[roomID], connID)
		if len(b.rooms[roomID]) == 0 {
			delete(b.rooms, roomID)
		}
	}
	delete(b.joined, connID)
	return sub, true
}

// TakeEvicted returns the subscribers dropped for being too slow since the
// last call.
func (b *Broadcaster) TakeEvicted() []Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := b.evicted
	b.evicted = nil
	return evicted
}

// DetachAll empties the broadcaster and returns what was attached.
func (b *Broadcaster) DetachAll() []Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := make([]Subscriber, 0, len(b.conns)+len(b.evicted))
	for _, sub := range b.conns {
		subs = append(subs, sub)
	}
	subs = append(subs, b.evicted...)
	b.evicted = nil
	b.conns = make(map[string]Subscriber)
	b.rooms = make(map[string]map[string]struct{})
	b.joined = make(map[string]map[string]struct{})
	return subs
}

// Subscribe adds connID to roomID's audience. Earlier subscriptions are kept.
func (b *Broadcaster) Subscribe(connID, roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.conns[connID]; !ok {
		return
	}
	if b.rooms[roomID] == nil {
		b.rooms[roomID] = make(map[string]struct{})
	}
	b.rooms[roomID][connID] = struct{}{}
	if b.joined[connID] == nil {
		b.joined[connID] = make(map[string]struct{})
	}
	b.joined[connID][roomID] = struct{}{}
}

// Subscribed reports whether connID currently receives roomID's events.
func (b *Broadcaster) Subscribed(connID, roomID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.rooms[roomID][connID]
	return ok
}

// Connected is the number of attached connections.
func (b *Broadcaster) Connected() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// ToRoom delivers ev to the subscribers of roomID.
func (b *Broadcaster) ToRoom(roomID string, ev Event, opts RoomDelivery) int {
	payload, ok := b.encode(ev)
	if !ok {
		return 0
	}

	b.mu.RLock()
	targets := make([]Subscriber, 0, len(b.rooms[roomID]))
	for connID := range b.rooms[roomID] {
		if opts.ExcludeSender && connID == opts.Sender {
			continue
		}
		targets = append(targets, b.conns[connID])
	}
	b.mu.RUnlock()

	return b.deliver(targets, ev.Name, payload)
}

// ToAll delivers ev to every attached connection.
func (b *Broadcaster) ToAll(ev Event) int {
	payload, ok := b.encode(ev)
	if !ok {
		return 0
	}

	b.mu.RLock()
	targets := make([]Subscriber, 0, len(b.conns))
	for _, sub := range b.conns {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	return b.deliver(targets, ev.Name, payload)
}

// ToConn delivers ev to a single connection.
func (b *Broadcaster) ToConn(connID string, ev Event) bool {
	payload, ok := b.encode(ev)
	if !ok {
		return false
	}

	b.mu.RLock()
	sub, ok := b.conns[connID]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	return b.deliver([]Subscriber{sub}, ev.Name, payload) == 1
}

func (b *Broadcaster) encode(ev Event) ([]byte, bool) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("encode event", "event", ev.Name, "error", err)
		return nil, false
	}
	return payload, true
}

func (b *Broadcaster) deliver(targets []Subscriber, name string, payload []byte) int {
	delivered := 0
	for _, sub := range targets {
		if sub.Deliver(payload) {
			delivered++
			continue
		}
		b.evict(sub, name)
	}
	return delivered
}

func (b *Broadcaster) evict(sub Subscriber, event string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if current, ok := b.conns[sub.ID()]; !ok || current != sub {
		return
	}
	b.detachLocked(sub.ID())
	b.evicted = append(b.evicted, sub)
	b.logger.Warn("evicting slow client", "event", event, "conn", sub.ID())
}

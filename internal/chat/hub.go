package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Inbound is a decoded command together with the connection that sent it.
type Inbound struct {
	ConnID  string
	Command Command
}

// Hub owns all chat state. Run is the only goroutine that mutates it, so
// every event is handled to completion, broadcasts included, before the
// next one starts. The stores keep their own locks for the read-only
// HTTP queries.
type Hub struct {
	rooms       *RoomStore
	users       *Registry
	broadcaster *Broadcaster
	presence    *PresenceTracker
	typing      *TypingCoordinator
	sink        MessageSink

	now        func() time.Time
	newID      func() string
	roomIDs    []string
	maxHistory int
	logger     *slog.Logger

	register   chan Subscriber
	unregister chan Subscriber
	inbound    chan Inbound

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithClock replaces the time source used for profiles and messages.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// WithIDs replaces the message id generator.
func WithIDs(newID func() string) Option {
	return func(h *Hub) { h.newID = newID }
}

// WithArchive hands every stored message to sink.
func WithArchive(sink MessageSink) Option {
	return func(h *Hub) { h.sink = sink }
}

// WithLogger sets the hub's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

// WithRooms replaces the fixed room set.
func WithRooms(ids ...string) Option {
	return func(h *Hub) { h.roomIDs = ids }
}

// WithHistoryLimit changes how many messages each room keeps.
func WithHistoryLimit(n int) Option {
	return func(h *Hub) { h.maxHistory = n }
}

func NewHub(opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		now:        time.Now,
		newID:      newMessageID,
		roomIDs:    DefaultRooms,
		maxHistory: MaxHistory,
		logger:     slog.Default(),
		register:   make(chan Subscriber),
		unregister: make(chan Subscriber),
		inbound:    make(chan Inbound, 256),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.rooms = NewRoomStore(h.maxHistory, h.roomIDs...)
	h.broadcaster = NewBroadcaster(h.logger)
	h.presence = NewPresenceTracker(h.broadcaster)
	h.users = NewRegistry(h.now, h.presence)
	h.typing = NewTypingCoordinator(h.users, h.broadcaster)
	return h
}

func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Register hands a new connection to the hub. It returns false once the
// hub has shut down.
func (h *Hub) Register(sub Subscriber) bool {
	if h.ctx.Err() != nil {
		return false
	}
	select {
	case h.register <- sub:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Unregister tells the hub a connection is gone.
func (h *Hub) Unregister(sub Subscriber) {
	if h.ctx.Err() != nil {
		return
	}
	select {
	case h.unregister <- sub:
	case <-h.ctx.Done():
	}
}

// Dispatch queues a command from connID. It returns false once the hub has
// shut down; inbound is buffered, so the context has to be checked first.
func (h *Hub) Dispatch(connID string, cmd Command) bool {
	if h.ctx.Err() != nil {
		return false
	}
	select {
	case h.inbound <- Inbound{ConnID: connID, Command: cmd}:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Run processes connection events until Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return

		case sub := <-h.register:
			h.connect(sub)

		case sub := <-h.unregister:
			h.disconnect(sub.ID())

		case in := <-h.inbound:
			h.handle(in.ConnID, in.Command)
		}
	}
}

// Shutdown stops Run and closes every connection.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	select {
	case <-h.done:
		h.logger.Info("hub stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("hub shutdown: %w", ctx.Err())
	}
}

func (h *Hub) connect(sub Subscriber) {
	if sub == nil {
		return
	}
	h.broadcaster.Attach(sub)
	h.logger.Info("client connected", "conn", sub.ID(), "clients", h.broadcaster.Connected())
}

func (h *Hub) disconnect(connID string) {
	sub, ok := h.broadcaster.Detach(connID)
	if !ok {
		return
	}
	h.release(sub)
	h.reapEvicted()
}

// release closes a detached subscriber and drops its profile.
func (h *Hub) release(sub Subscriber) {
	sub.Close()

	connID := sub.ID()
	if user, joined := h.users.Get(connID); joined {
		h.users.Unregister(connID)
		h.logger.Info("user disconnected", "conn", connID, "name", user.Name)
	}
	h.logger.Debug("client disconnected", "conn", connID, "clients", h.broadcaster.Connected())
}

// reapEvicted releases clients the broadcaster dropped during this turn.
// Releasing one broadcasts presence, which may evict more.
func (h *Hub) reapEvicted() {
	for {
		evicted := h.broadcaster.TakeEvicted()
		if len(evicted) == 0 {
			return
		}
		for _, sub := range evicted {
			h.release(sub)
		}
	}
}

func (h *Hub) closeAll() {
	subs := h.broadcaster.DetachAll()
	for _, sub := range subs {
		sub.Close()
	}
	h.logger.Info("closed client connections", "count", len(subs))
}

func (h *Hub) handle(connID string, cmd Command) {
	defer h.reapEvicted()

	switch c := cmd.(type) {
	case JoinCommand:
		h.join(connID, c.Profile)
	case JoinRoomCommand:
		h.joinRoom(connID, c.Room)
	case SendCommand:
		h.send(connID, c)
	case TypingCommand:
		if c.Started {
			h.typing.Start(connID, c.Room)
		} else {
			h.typing.Stop(connID, c.Room)
		}
	case StatusCommand:
		h.users.UpdateStatus(connID, c.Status)
	default:
		h.logger.Warn("unhandled command", "conn", connID, "type", fmt.Sprintf("%T", cmd))
	}
}

func (h *Hub) join(connID string, profile Profile) {
	user := h.users.Register(connID, profile)
	h.broadcaster.Subscribe(connID, DefaultRoom)

	history, _ := h.rooms.Snapshot(DefaultRoom)
	h.broadcaster.ToConn(connID, roomMessages(DefaultRoom, history))

	h.logger.Info("user joined", "conn", connID, "name", user.Name)
}

func (h *Hub) joinRoom(connID, roomID string) {
	history, ok := h.rooms.Snapshot(roomID)
	if !ok {
		return
	}
	h.broadcaster.Subscribe(connID, roomID)
	h.broadcaster.ToConn(connID, roomMessages(roomID, history))
}

func (h *Hub) send(connID string, cmd SendCommand) {
	user, ok := h.users.Get(connID)
	if !ok {
		return
	}

	now := h.now()
	msg := Message{
		ID:        h.newID(),
		User:      user.Name,
		Avatar:    user.Avatar,
		Text:      cmd.Text,
		Timestamp: now.Format(timestampLayout),
		Room:      cmd.Room,
		Type:      MessageTypeText,
		CreatedAt: now,
	}

	if err := h.rooms.Append(msg); err != nil {
		if !errors.Is(err, ErrRoomNotFound) {
			h.logger.Error("store message", "conn", connID, "error", err)
		}
		return
	}

	h.broadcaster.ToRoom(msg.Room, newMessage(msg), IncludeSender(connID))
	if h.sink != nil {
		h.sink.Offer(msg)
	}
	h.logger.Debug("message sent", "conn", connID, "room", msg.Room, "id", msg.ID)
}

// ---------------------------------------------
// Read-only queries
// ---------------------------------------------

// Health reports connected users and stored messages.
func (h *Hub) Health() Health {
	return Health{
		Status:         "OK",
		Message:        "Chat server is running",
		ConnectedUsers: h.users.Count(),
		TotalMessages:  h.rooms.TotalMessages(),
	}
}

// Rooms lists every room with its message count and last message.
func (h *Hub) Rooms() []RoomSummary {
	return h.rooms.Summaries()
}

// History returns a room's stored messages.
func (h *Hub) History(roomID string) (History, error) {
	messages, ok := h.rooms.Snapshot(roomID)
	if !ok {
		return History{}, fmt.Errorf("history of %q: %w", roomID, ErrRoomNotFound)
	}
	return History{Room: roomID, Messages: messages}, nil
}

// Users returns the joined users in join order.
func (h *Hub) Users() []User {
	return h.users.Users()
}

package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	limiterTimeout = 500 * time.Millisecond

	// DefaultMaxMessageSize is the largest inbound frame accepted from a peer.
	DefaultMaxMessageSize = 4096

	sendBuffer = 256
)

// FrameLimiter decides whether a peer may send another frame.
type FrameLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	// Buffered channel of outbound events. Only the hub closes it.
	send chan []byte

	limiter        FrameLimiter
	maxMessageSize int64
	logger         *slog.Logger

	closeOnce sync.Once
	dropOnce  sync.Once
}

// ClientOptions carries the per-connection settings chosen by the handler.
type ClientOptions struct {
	Limiter        FrameLimiter
	MaxMessageSize int64
	Logger         *slog.Logger
}

// NewClient wraps conn with a fresh connection id.
func NewClient(hub *Hub, conn *websocket.Conn, opts ClientOptions) *Client {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = DefaultMaxMessageSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	id := uuid.NewString()
	return &Client{
		id:             id,
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, sendBuffer),
		limiter:        opts.Limiter,
		maxMessageSize: opts.MaxMessageSize,
		logger:         opts.Logger.With("conn", id),
	}
}

func (c *Client) ID() string { return c.id }

// Deliver queues payload for the write pump. A client whose buffer is full
// is cut off; the broadcaster evicts it on the false return.
func (c *Client) Deliver(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		c.dropOnce.Do(func() {
			c.logger.Warn("send buffer full, closing connection")
			if c.conn != nil {
				_ = c.conn.Close()
			}
		})
		return false
	}
}

// Close ends the outbound queue; the write pump sends a close frame.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// ReadPump pumps frames from the websocket connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				c.logger.Warn("frame exceeded size limit", "limit", c.maxMessageSize)
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
				c.logger.Warn("unexpected close", "error", err)
			}
			return
		}

		if !c.allow() {
			continue
		}

		cmd, err := DecodeCommand(raw)
		if err != nil {
			c.logger.Debug("ignoring frame", "error", err)
			continue
		}
		if !c.hub.Dispatch(c.id, cmd) {
			return
		}
	}
}

func (c *Client) allow() bool {
	if c.limiter == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), limiterTimeout)
	defer cancel()

	ok, err := c.limiter.Allow(ctx, c.id)
	if err != nil {
		// Fail open: a limiter outage must not silence the chat.
		c.logger.Error("rate limiter", "error", err)
		return true
	}
	if !ok {
		c.logger.Debug("rate limited, discarding frame")
	}
	return ok
}

// WritePump pumps events from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(payload)

			// Queued events share the frame, one JSON document per line.
			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				_, _ = w.Write([]byte{'\n'})
				_, _ = w.Write(next)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

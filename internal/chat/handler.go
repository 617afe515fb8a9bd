package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// HandlerConfig carries the transport settings for the chat endpoints.
type HandlerConfig struct {
	// CheckOrigin validates the Origin header of websocket upgrades.
	// Nil accepts same-origin requests only.
	CheckOrigin    func(r *http.Request) bool
	Limiter        FrameLimiter
	MaxMessageSize int64
	Logger         *slog.Logger
}

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	cfg      HandlerConfig
	logger   *slog.Logger
}

func NewHandler(hub *Hub, cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Routes mounts the websocket endpoint and the read-only query API.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/ws", h.ServeWs)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/rooms", h.ListRooms)
		r.Get("/rooms/{roomID}/messages", h.RoomMessages)
	})
}

func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(h.hub, conn, ClientOptions{
		Limiter:        h.cfg.Limiter,
		MaxMessageSize: h.cfg.MaxMessageSize,
		Logger:         h.logger,
	})
	if !h.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Health())
}

func (h *Handler) ListRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Rooms())
}

func (h *Handler) RoomMessages(w http.ResponseWriter, r *http.Request) {
	history, err := h.hub.History(chi.URLParam(r, "roomID"))
	if errors.Is(err, ErrRoomNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Room not found"})
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

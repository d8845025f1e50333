package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

const statusWriteTimeout = 5 * time.Second

// StatusStore records the durable presence flag. The in-memory registry is
// authoritative for deliverability; these writes only back the displayed
// online/offline state and are best-effort.
type StatusStore interface {
	SetStatus(ctx context.Context, userID, status string, lastSeen time.Time) error
}

// Hub owns the connection lifecycle. A single Run goroutine consumes the
// register/unregister channels, so every presence broadcast reflects a
// registry snapshot taken at the moment of the event.
type Hub struct {
	registry *Registry
	status   StatusStore
	logger   *slog.Logger

	register   chan *Client
	unregister chan *Client
}

func NewHub(registry *Registry, status StatusStore, logger *slog.Logger) *Hub {
	return &Hub{
		registry:   registry,
		status:     status,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes connection lifecycle events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	// Last-registered wins: kick the previous connection for this user.
	if old := h.registry.Register(c.userID, c); old != nil {
		old.closeSend()
	}

	h.setStatusAsync(c.userID, statusOnline, time.Time{})
	h.broadcastOnlineUsers()

	h.logger.Info("user connected", slog.String("userID", c.userID))
}

func (h *Hub) handleUnregister(c *Client) {
	removed := h.registry.Unregister(c.userID, c)
	c.closeSend()
	if !removed {
		// A newer connection already replaced this one; its register event
		// has broadcast the current snapshot.
		return
	}

	h.setStatusAsync(c.userID, statusOffline, time.Now())
	h.broadcastOnlineUsers()

	h.logger.Info("user disconnected", slog.String("userID", c.userID))
}

// setStatusAsync updates the durable flag without blocking the lifecycle
// loop. Failure degrades the displayed presence, never the connection.
func (h *Hub) setStatusAsync(userID, status string, lastSeen time.Time) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
		defer cancel()
		if err := h.status.SetStatus(ctx, userID, status, lastSeen); err != nil {
			h.logger.Warn("presence status write failed",
				slog.String("userID", userID),
				slog.String("status", status),
				slog.Any("error", err))
		}
	}()
}

// broadcastOnlineUsers pushes the current online set to every live
// connection. The snapshot is taken fresh per event, never coalesced.
func (h *Hub) broadcastOnlineUsers() {
	payload, err := newEnvelope(EventOnlineUsers, h.registry.Snapshot())
	if err != nil {
		h.logger.Error("encoding online users", slog.Any("error", err))
		return
	}
	for _, c := range h.registry.Clients() {
		c.trySend(payload)
	}
}

// Push delivers an event to userID's live connection. It reports whether
// the frame was enqueued; false means a delivery miss, which callers treat
// as a normal outcome.
func (h *Hub) Push(userID, event string, payload any) bool {
	c, ok := h.registry.Lookup(userID)
	if !ok {
		return false
	}
	frame, err := newEnvelope(event, payload)
	if err != nil {
		h.logger.Error("encoding push event", slog.String("event", event), slog.Any("error", err))
		return false
	}
	return c.trySend(frame)
}

// handleInbound dispatches a client-sent frame. The channel only carries
// transient notifies; message mutations go through the REST pipeline.
func (h *Hub) handleInbound(c *Client, env *Envelope) {
	switch env.Event {
	case EventSendMessage:
		var notify NotifyPayload
		if err := json.Unmarshal(env.Data, &notify); err != nil || notify.ReceiverID == "" {
			h.logger.Warn("dropping malformed notify", slog.String("userID", c.userID))
			return
		}
		peer, ok := h.registry.Lookup(notify.ReceiverID)
		if !ok {
			return
		}
		frame, err := newEnvelope(EventSendMessage, notify.Data)
		if err != nil {
			return
		}
		peer.trySend(frame)

	default:
		h.logger.Warn("unknown inbound event",
			slog.String("userID", c.userID), slog.String("event", env.Event))
	}
}

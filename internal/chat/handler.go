package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"dmchat/internal/apperror"
	"dmchat/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict to the frontend origin before exposing publicly
	},
}

type Handler struct {
	hub     *Hub
	service *Service
	logger  *slog.Logger
}

func NewHandler(hub *Hub, service *Service, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, service: service, logger: logger}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperror.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, apperror.ErrForbidden):
		status, msg = http.StatusForbidden, err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ServeWs upgrades an authenticated request to a websocket and hands the
// connection to the hub.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := newClient(h.hub, conn, userID)
	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// GetHistory handles GET /api/messages/{peerID}.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	peerID := chi.URLParam(r, "peerID")

	messages, err := h.service.History(r.Context(), userID, peerID)
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// SendMessage handles POST /api/messages/send/{peerID}.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	peerID := chi.URLParam(r, "peerID")

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.Validation("invalid request body"))
		return
	}

	m, err := h.service.Send(r.Context(), userID, peerID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// EditMessage handles PATCH /api/messages/{id}.
func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	id := chi.URLParam(r, "id")

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.Validation("invalid request body"))
		return
	}

	m, err := h.service.Edit(r.Context(), id, userID, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DeleteMessage handles DELETE /api/messages/{id}.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

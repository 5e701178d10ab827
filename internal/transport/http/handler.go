package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"
	"github.com/cwrk-planet/chat-service/internal/validation"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the history API and the probes.
type Handler struct {
	history store.HistoryReader
	ready   Pinger
}

func NewHandler(history store.HistoryReader, ready Pinger) *Handler {
	return &Handler{history: history, ready: ready}
}

type HistoryRequest struct {
	A      string `json:"a" validate:"identity,max=128"`
	B      string `json:"b" validate:"identity,max=128"`
	Cursor string `json:"cursor" validate:"omitempty,base64rawurl"`
	Limit  *int   `json:"limit" validate:"omitempty,min=1"`
}

type MessageItem struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

type HistoryResponse struct {
	Items      []MessageItem `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// PortalMessage is the portal's original message shape.
type PortalMessage struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/chat/history/{a}/{b}?cursor=&limit=
//
// Without limit or cursor the whole conversation is returned.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	req, err := parseHistoryRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var (
		msgs []domain.Message
		next string
	)
	if req.Limit == nil && req.Cursor == "" {
		msgs, err = h.history.History(r.Context(), req.A, req.B)
	} else {
		limit := store.DefaultPageSize
		if req.Limit != nil {
			limit = store.ClampLimit(*req.Limit)
		}
		msgs, next, err = h.history.HistoryPage(r.Context(), req.A, req.B, req.Cursor, limit)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := HistoryResponse{Items: make([]MessageItem, 0, len(msgs)), NextCursor: next}
	for _, m := range msgs {
		resp.Items = append(resp.Items, MessageItem{
			ID:         m.ID.String(),
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Content:    m.Content,
			Timestamp:  m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseHistoryRequest(r *http.Request) (HistoryRequest, error) {
	q := r.URL.Query()
	req := HistoryRequest{
		A:      chi.URLParam(r, "a"),
		B:      chi.URLParam(r, "b"),
		Cursor: q.Get("cursor"),
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return req, domain.NewValidationError("limit", "must be an integer")
		}
		req.Limit = &n
	}
	return req, validation.Struct(req)
}

// GET /api/messages/{a}/{b}
//
// The whole conversation as a bare array, oldest first.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	req := HistoryRequest{A: chi.URLParam(r, "a"), B: chi.URLParam(r, "b")}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	msgs, err := h.history.History(r.Context(), req.A, req.B)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]PortalMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, PortalMessage{
			ID:         m.ID.String(),
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Content:    m.Content,
			Timestamp:  m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.ready.Ping(r.Context()); err != nil {
		L(r.Context()).Warn("readiness probe failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/chat-service/internal/auth"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"
)

var errForbidden = errors.New("forbidden")

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, store.ErrInvalidCursor):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: http.StatusText(status)}

	switch {
	case errors.Is(err, store.ErrInvalidCursor):
		resp.Error = "invalid_cursor"
	case status < http.StatusInternalServerError:
		resp.Message = err.Error()
	}

	if status >= http.StatusInternalServerError {
		L(r.Context()).Error("request failed", slog.Any("err", err))
	}
	writeJSON(w, status, resp)
}

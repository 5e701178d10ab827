// Package http exposes the chat history API, probes, metrics and the
// websocket endpoint on one chi router.
package http

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Handler *Handler
	WS      http.HandlerFunc
	Log     *slog.Logger

	AllowedOrigins   []string
	HistoryPerMinute int
	// Verifier is optional; when set the history route requires a token
	// issued to one of the two participants.
	Verifier TokenVerifier
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(WithRequestLoggerCtx(d.Log))
	r.Use(RequestLogger)

	r.Get("/healthz", d.Handler.Health)
	r.Get("/readyz", d.Handler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if d.WS != nil {
		r.Get("/ws", d.WS)
	}

	// Credentials are never allowed together with a wildcard origin.
	origins := d.AllowedOrigins
	wildcard := len(origins) == 0 || slices.Contains(origins, "*")
	if wildcard {
		origins = []string{"*"}
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: !wildcard,
			MaxAge:           300,
		}))
		api.Use(middleware.Timeout(30 * time.Second))
		if d.HistoryPerMinute > 0 {
			api.Use(httprate.LimitByIP(d.HistoryPerMinute, time.Minute))
		}

		api.Group(func(hr chi.Router) {
			if d.Verifier != nil {
				hr.Use(RequireParticipant(d.Verifier, "a", "b"))
			}
			hr.Get("/chat/history/{a}/{b}", d.Handler.History)
			// Path and bare array shape kept for existing portal clients.
			hr.Get("/messages/{a}/{b}", d.Handler.Messages)
		})
	})

	return r
}

// Package grpcx serves the standard gRPC health service, reporting the
// message store's readiness.
package grpcx

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service key besides the overall "" entry.
const ServiceName = "chat.v1.ChatService"

type Pinger interface {
	Ping(ctx context.Context) error
}

type Health struct {
	hs       *health.Server
	ping     Pinger
	interval time.Duration
	log      *slog.Logger
	serving  bool
}

func NewHealth(ping Pinger, interval time.Duration, log *slog.Logger) *Health {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Health{
		hs:       hs,
		ping:     ping,
		interval: interval,
		log:      log.With("component", "grpc_health"),
	}
}

func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.hs)
}

// Run probes the store every interval until ctx is done, then marks the
// service as shutting down.
func (h *Health) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			h.hs.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

// Check probes once and publishes the result.
func (h *Health) Check(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()

	err := h.ping.Ping(pctx)
	st := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	if ok := err == nil; ok != h.serving {
		h.serving = ok
		h.log.Info("serving status changed", "status", st.String(), "err", err)
	}
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(ServiceName, st)
}

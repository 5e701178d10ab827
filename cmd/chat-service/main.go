package main

import (
	"context"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/auth"
	"github.com/cwrk-planet/chat-service/internal/gateway"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/registry"
	"github.com/cwrk-planet/chat-service/internal/relay"
	grpcx "github.com/cwrk-planet/chat-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-service/internal/transport/http"
	"github.com/cwrk-planet/chat-service/internal/transport/ws"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg := logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	lg.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "store", cfg.Store.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- store ---
	st, err := openStore(ctx, cfg.Store, lg)
	if err != nil {
		lg.Error("open store", "backend", cfg.Store.Backend, "err", err)
		return
	}
	defer func() {
		if err := st.Close(); err != nil {
			lg.Error("close store", "err", err)
		}
	}()

	// --- core ---
	reg := registry.New()
	metrics.RegisterBoundChannels(prometheus.DefaultRegisterer, reg.Len)
	rl := relay.New(st, reg, lg, relay.WithMaxContentLength(cfg.Relay.MaxContentLength))
	gw := gateway.New(reg, rl, lg)

	var verifier *auth.Verifier
	if cfg.Auth.Secret != "" {
		verifier = auth.NewVerifier(cfg.Auth.Secret, 30*time.Second)
	} else {
		lg.Warn("auth.secret is empty, identities are trusted as presented")
	}

	// --- WS ---
	wsOpts := ws.Options{
		PingInterval:   cfg.WS.PingIntervalOr(15 * time.Second),
		ReadLimit:      cfg.WS.ReadLimit,
		SendQueue:      cfg.WS.SendQueue,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}
	if verifier != nil {
		wsOpts.Verifier = verifier
	}
	wsServer := ws.NewServer(gw, lg, wsOpts)

	// --- HTTP ---
	deps := httpx.Deps{
		Handler:          httpx.NewHandler(st, st),
		WS:               wsServer.HandleWS,
		Log:              lg,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		HistoryPerMinute: cfg.RateLimit.HistoryPerMinute,
	}
	if verifier != nil {
		deps.Verifier = verifier
	}
	httpSrv := httpx.New(httpx.Config{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeoutOr(10 * time.Second),
		WriteTimeout:    cfg.HTTP.WriteTimeoutOr(15 * time.Second),
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeoutOr(10 * time.Second),
	}, httpx.NewRouter(deps), wsServer.Shutdown)

	// --- run ---
	httpDone := make(chan error, 1)
	go func() {
		lg.Info("http listen", "addr", cfg.HTTP.Addr)
		httpDone <- httpSrv.Run(ctx)
	}()

	grpcErr := make(chan error, 1)
	var grpcServer *grpc.Server
	if cfg.GRPC.Addr != "" {
		grpcServer = grpc.NewServer(
			grpc.ChainUnaryInterceptor(grpcx.UnaryServerInterceptor(lg, 10*time.Second)),
			grpc.ChainStreamInterceptor(grpcx.StreamServerInterceptor(lg)),
		)
		health := grpcx.NewHealth(st, 5*time.Second, lg)
		health.Register(grpcServer)
		go health.Run(ctx)

		go func() {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				grpcErr <- err
				return
			}
			lg.Info("grpc listen", "addr", cfg.GRPC.Addr)
			if err := grpcServer.Serve(lis); err != nil {
				grpcErr <- err
			}
		}()
	}

	// --- graceful shutdown ---
	httpStopped := false
	select {
	case <-ctx.Done():
		lg.Info("shutdown signal")
	case err := <-httpDone:
		httpStopped = true
		lg.Error("http server", "err", err)
	case err := <-grpcErr:
		lg.Error("grpc server", "err", err)
	}
	stop()

	if grpcServer != nil {
		stopGRPC(grpcServer, cfg.HTTP.ShutdownTimeoutOr(10*time.Second))
	}
	if !httpStopped {
		if err := <-httpDone; err != nil {
			lg.Error("http shutdown", "err", err)
		}
	}
	lg.Info("stopped")
}

// stopGRPC drains in-flight calls, then forces open Health.Watch streams
// closed once timeout passes.
func stopGRPC(srv *grpc.Server, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		srv.Stop()
	}
}

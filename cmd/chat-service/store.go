package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/store"
	"github.com/cwrk-planet/chat-service/internal/store/badger"
	"github.com/cwrk-planet/chat-service/internal/store/memory"
	"github.com/cwrk-planet/chat-service/internal/store/postgres"
)

func openStore(ctx context.Context, cfg config.Store, lg *slog.Logger) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetimeOr(0),
			ApplicationName: cfg.Postgres.ApplicationName,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		st := postgres.New(pool)
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil

	case config.BackendBadger:
		return badger.Open(badger.Config{Path: cfg.Badger.Path, InMemory: cfg.Badger.InMemory}, lg)

	case config.BackendMemory:
		lg.Warn("memory store selected, history is lost on restart")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("store backend %q is not supported", cfg.Backend)
	}
}

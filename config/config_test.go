package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	req := require.New(t)

	cfg, err := Parse([]byte("http:\n  addr: \":8080\"\n"))
	req.NoError(err)
	req.Equal(BackendMemory, cfg.Store.Backend)
	req.Equal("chat-service", cfg.Logging.Service)
	req.Equal("dev", cfg.Logging.Env)
	req.Equal("std", cfg.Logging.Backend)
	req.Equal(4000, cfg.Relay.MaxContentLength)
	req.Equal(256, cfg.WS.SendQueue)
	req.EqualValues(1<<20, cfg.WS.ReadLimit)
	req.Equal(15*time.Second, cfg.WS.PingIntervalOr(15*time.Second))
}

func TestParse_RequiresHTTPAddr(t *testing.T) {
	_, err := Parse([]byte("grpc:\n  addr: \":9090\"\n"))
	require.EqualError(t, err, "http.addr is required")
}

func TestParse_StoreBackends(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"postgres without dsn", "store:\n  backend: postgres\n", "store.postgres.dsn is required"},
		{"badger without path", "store:\n  backend: badger\n", "store.badger.path is required"},
		{"badger in memory", "store:\n  backend: badger\n  badger:\n    inMemory: true\n", ""},
		{"unknown", "store:\n  backend: mongo\n", `store.backend "mongo" is not supported`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte("http:\n  addr: \":8080\"\n" + tc.yaml))
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tc.wantErr)
		})
	}
}

func TestParse_AuthNeedsExplicitOrigins(t *testing.T) {
	for _, origins := range []string{"", "  allowedOrigins: [\"*\"]\n"} {
		_, err := Parse([]byte("http:\n  addr: \":8080\"\n" + origins + "auth:\n  secret: s3cret\n"))
		require.EqualError(t, err, "http.allowedOrigins must list explicit origins when auth.secret is set")
	}

	cfg, err := Parse([]byte("http:\n  addr: \":8080\"\n  allowedOrigins: [\"http://portal.local\"]\nauth:\n  secret: s3cret\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"http://portal.local"}, cfg.HTTP.AllowedOrigins)
}

func TestParse_RejectsBadDuration(t *testing.T) {
	_, err := Parse([]byte("http:\n  addr: \":8080\"\nws:\n  pingInterval: soon\n"))
	require.ErrorContains(t, err, "ws.pingInterval")
}

func TestLoadConfig_FromPath(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	req.NoError(os.WriteFile(path, []byte("http:\n  addr: \":1234\"\nrelay:\n  maxContentLength: 10\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := LoadConfig()
	req.NoError(err)
	req.Equal(":1234", cfg.HTTP.Addr)
	req.Equal(10, cfg.Relay.MaxContentLength)
}

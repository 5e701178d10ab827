package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr            string   `yaml:"addr"`
	AllowedOrigins  []string `yaml:"allowedOrigins"`
	ReadTimeout     string   `yaml:"readTimeout"`
	WriteTimeout    string   `yaml:"writeTimeout"`
	ShutdownTimeout string   `yaml:"shutdownTimeout"`
}

type GRPC struct {
	Addr string `yaml:"addr"` // empty disables the health server
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // chat-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN             string `yaml:"dsn"`
	MaxConns        int32  `yaml:"maxConns"`
	MinConns        int32  `yaml:"minConns"`
	MaxConnLifetime string `yaml:"maxConnLifetime"`
	ApplicationName string `yaml:"applicationName"`
}

type Badger struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"inMemory"`
}

type Store struct {
	Backend  string   `yaml:"backend"` // postgres|badger|memory
	Postgres Postgres `yaml:"postgres"`
	Badger   Badger   `yaml:"badger"`
}

type Relay struct {
	MaxContentLength int `yaml:"maxContentLength"`
}

type WS struct {
	PingInterval string `yaml:"pingInterval"`
	ReadLimit    int64  `yaml:"readLimit"`
	SendQueue    int    `yaml:"sendQueue"`
}

type Auth struct {
	// HS256 secret for access tokens; empty trusts identities as presented.
	Secret string `yaml:"secret"`
}

type RateLimit struct {
	HistoryPerMinute int `yaml:"historyPerMinute"`
}

type Config struct {
	HTTP      HTTP      `yaml:"http"`
	GRPC      GRPC      `yaml:"grpc"`
	Logging   Logging   `yaml:"logging"`
	Store     Store     `yaml:"store"`
	Relay     Relay     `yaml:"relay"`
	WS        WS        `yaml:"ws"`
	Auth      Auth      `yaml:"auth"`
	RateLimit RateLimit `yaml:"rateLimit"`
}

const (
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
	BackendMemory   = "memory"
)

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}

	if c.Auth.Secret != "" && (len(c.HTTP.AllowedOrigins) == 0 || slices.Contains(c.HTTP.AllowedOrigins, "*")) {
		return errors.New("http.allowedOrigins must list explicit origins when auth.secret is set")
	}

	switch c.Store.Backend {
	case "":
		c.Store.Backend = BackendMemory
	case BackendPostgres:
		if c.Store.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn is required")
		}
	case BackendBadger:
		if c.Store.Badger.Path == "" && !c.Store.Badger.InMemory {
			return errors.New("store.badger.path is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("store.backend %q is not supported", c.Store.Backend)
	}

	for name, v := range map[string]string{
		"http.readTimeout":               c.HTTP.ReadTimeout,
		"http.writeTimeout":              c.HTTP.WriteTimeout,
		"http.shutdownTimeout":           c.HTTP.ShutdownTimeout,
		"ws.pingInterval":                c.WS.PingInterval,
		"store.postgres.maxConnLifetime": c.Store.Postgres.MaxConnLifetime,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Relay.MaxContentLength <= 0 {
		c.Relay.MaxContentLength = 4000
	}
	if c.WS.ReadLimit <= 0 {
		c.WS.ReadLimit = 1 << 20
	}
	if c.WS.SendQueue <= 0 {
		c.WS.SendQueue = 256
	}
	if c.Store.Postgres.ApplicationName == "" {
		c.Store.Postgres.ApplicationName = c.Logging.Service
	}
	return nil
}

func (h HTTP) ReadTimeoutOr(def time.Duration) time.Duration {
	return parseDurationOr(def, h.ReadTimeout)
}

func (h HTTP) WriteTimeoutOr(def time.Duration) time.Duration {
	return parseDurationOr(def, h.WriteTimeout)
}

func (h HTTP) ShutdownTimeoutOr(def time.Duration) time.Duration {
	return parseDurationOr(def, h.ShutdownTimeout)
}

func (w WS) PingIntervalOr(def time.Duration) time.Duration {
	return parseDurationOr(def, w.PingInterval)
}

func (p Postgres) MaxConnLifetimeOr(def time.Duration) time.Duration {
	return parseDurationOr(def, p.MaxConnLifetime)
}

func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	DB          DBConfig
	Redis       RedisConfig
	NATS        NATSConfig
	Log         LogConfig
	CORS        CORSConfig
	RateLimit   RateLimitConfig
	Aggregation AggregationConfig
	WriteBack   WriteBackConfig
	Permission  PermissionConfig
	Provider    ProviderConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// StorageConfig selects the kv backend for permission and write-back
// documents.
type StorageConfig struct {
	Backend string // "redis" or "postgres"
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	Enabled bool
	URL     string
}

type LogConfig struct {
	Level  string
	Format string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	Enabled   bool
	MaxReqs   int
	WindowSec int
}

type AggregationConfig struct {
	ProviderTimeout time.Duration
}

type WriteBackConfig struct {
	MaxContexts  int
	MaxBytes     int
	DefaultTTL   time.Duration
	EphemeralTTL time.Duration
}

// PermissionConfig drives the policy confirmer standing in for the
// interactive permission dialog.
type PermissionConfig struct {
	AutoAllow    []string
	AutoDeny     []string
	DefaultAllow bool
}

// ProviderConfig seeds the default provider registered at startup.
type ProviderConfig struct {
	ID      string
	Name    string
	Version string
	Domain  string
	MaxTopK int
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		Storage: StorageConfig{
			Backend: k.String("storage.backend"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			Enabled: k.Bool("nats.enabled"),
			URL:     k.String("nats.url"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(k.String("cors.allowed.origins")),
		},
		RateLimit: RateLimitConfig{
			Enabled:   k.Bool("ratelimit.enabled"),
			MaxReqs:   k.Int("ratelimit.max.reqs"),
			WindowSec: k.Int("ratelimit.window.sec"),
		},
		WriteBack: WriteBackConfig{
			MaxContexts: k.Int("writeback.max.contexts"),
			MaxBytes:    k.Int("writeback.max.bytes"),
		},
		Permission: PermissionConfig{
			AutoAllow:    splitList(k.String("permission.auto.allow")),
			AutoDeny:     splitList(k.String("permission.auto.deny")),
			DefaultAllow: k.Bool("permission.default.allow"),
		},
		Provider: ProviderConfig{
			ID:      k.String("provider.id"),
			Name:    k.String("provider.name"),
			Version: k.String("provider.version"),
			Domain:  k.String("provider.domain"),
			MaxTopK: k.Int("provider.max.topk"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "redis"
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "ctxhub"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "ctxhub"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.RateLimit.MaxReqs == 0 {
		cfg.RateLimit.MaxReqs = 60
	}
	if cfg.RateLimit.WindowSec == 0 {
		cfg.RateLimit.WindowSec = 60
	}
	if cfg.WriteBack.MaxContexts == 0 {
		cfg.WriteBack.MaxContexts = 100
	}
	if cfg.WriteBack.MaxBytes == 0 {
		cfg.WriteBack.MaxBytes = 64 * 1024
	}
	if cfg.Provider.ID == "" {
		cfg.Provider.ID = "ctxhub-default"
	}
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "ContextHub Default Provider"
	}
	if cfg.Provider.Version == "" {
		cfg.Provider.Version = "1.0.0"
	}
	if cfg.Provider.Domain == "" {
		cfg.Provider.Domain = "localhost"
	}

	// Parse durations
	timeoutStr := k.String("aggregation.provider.timeout")
	if timeoutStr == "" {
		timeoutStr = "5s"
	}
	cfg.Aggregation.ProviderTimeout, err = time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing aggregation provider timeout: %w", err)
	}

	defaultTTLStr := k.String("writeback.default.ttl")
	if defaultTTLStr == "" {
		defaultTTLStr = "24h"
	}
	cfg.WriteBack.DefaultTTL, err = time.ParseDuration(defaultTTLStr)
	if err != nil {
		return nil, fmt.Errorf("parsing writeback default ttl: %w", err)
	}

	ephemeralTTLStr := k.String("writeback.ephemeral.ttl")
	if ephemeralTTLStr == "" {
		ephemeralTTLStr = "5m"
	}
	cfg.WriteBack.EphemeralTTL, err = time.ParseDuration(ephemeralTTLStr)
	if err != nil {
		return nil, fmt.Errorf("parsing writeback ephemeral ttl: %w", err)
	}

	return cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

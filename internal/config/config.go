package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ModeAll    = "ALL"
	ModeAPI    = "API"
	ModeWorker = "WORKER"
)

var (
	ErrMissingDatabaseDSN   = errors.New("DB_DSN is required")
	ErrMissingJWTSecret     = errors.New("JWT_SECRET is required")
	ErrMissingAdminPassword = errors.New("ADMIN_PASSWORD is required")
	ErrMissingMasterKey     = errors.New("at least one master key is required")
)

type Config struct {
	AppMode string

	HTTP   HTTPConfig
	Auth   AuthConfig
	Redis  RedisConfig
	DB     DBConfig
	Worker WorkerConfig
	Rate   RateConfig
	Crypto CryptoConfig
	Log    LogConfig
}

type HTTPConfig struct {
	ListenAddr  string
	ReadTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	AdminPassword string
	InviteTTL     time.Duration
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	QueueStream string
	QueueGroup  string
	QueueBlock  time.Duration
	DedupeTTL   time.Duration
}

type DBConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type WorkerConfig struct {
	Concurrency  int
	ConsumerName string
	MaxRetries   int
	StageDelay   time.Duration
}

type RateConfig struct {
	OrgPerHour int64
}

type CryptoConfig struct {
	CurrentKeyID string
	Keys         map[string][]byte
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		AppMode: strings.ToUpper(mustEnv("APP_MODE", ModeAll)),
		HTTP: HTTPConfig{
			ListenAddr:  mustEnv("HTTP_LISTEN_ADDR", ":8080"),
			ReadTimeout: mustDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:     mustEnv("JWT_SECRET", ""),
			TokenTTL:      mustDuration("TOKEN_TTL", 12*time.Hour),
			AdminPassword: mustEnv("ADMIN_PASSWORD", ""),
			InviteTTL:     mustDuration("INVITE_TTL", 72*time.Hour),
		},
		Redis: RedisConfig{
			Addr:        mustEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    mustEnv("REDIS_PASSWORD", ""),
			DB:          mustInt("REDIS_DB", 0),
			QueueStream: mustEnv("QUEUE_STREAM", "botadmin:files"),
			QueueGroup:  mustEnv("QUEUE_GROUP", "botadmin-workers"),
			QueueBlock:  mustDuration("QUEUE_BLOCK", 5*time.Second),
			DedupeTTL:   mustDuration("UPDATE_DEDUPE_TTL", 6*time.Hour),
		},
		DB: DBConfig{
			Driver:      strings.ToLower(mustEnv("DB_DRIVER", "sqlite")),
			DSN:         mustEnv("DB_DSN", "file:botadmin.db?_pragma=busy_timeout(5000)"),
			AutoMigrate: mustBool("AUTO_MIGRATE", true),
		},
		Worker: WorkerConfig{
			Concurrency:  mustInt("WORKER_CONCURRENCY", 2),
			ConsumerName: mustEnv("WORKER_CONSUMER_NAME", hostnameOr("worker")),
			MaxRetries:   mustInt("WORKER_MAX_RETRIES", 3),
			StageDelay:   mustDuration("WORKER_STAGE_DELAY", 500*time.Millisecond),
		},
		Rate: RateConfig{
			OrgPerHour: int64(mustInt("ORG_RATE_LIMIT_PER_HOUR", 1000)),
		},
		Log: LogConfig{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
	}

	if cfg.DB.DSN == "" {
		return nil, ErrMissingDatabaseDSN
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	if cfg.Auth.AdminPassword == "" {
		return nil, ErrMissingAdminPassword
	}
	if cfg.AppMode != ModeAll && cfg.AppMode != ModeAPI && cfg.AppMode != ModeWorker {
		return nil, fmt.Errorf("unsupported APP_MODE %q", cfg.AppMode)
	}

	cc, err := loadCryptoConfig()
	if err != nil {
		return nil, err
	}
	cfg.Crypto = cc

	return cfg, nil
}

func loadCryptoConfig() (CryptoConfig, error) {
	keysB64 := map[string]string{}

	if raw := mustEnv("MASTER_KEYS_JSON", ""); raw != "" {
		var parsed map[string]string
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return CryptoConfig{}, fmt.Errorf("parse MASTER_KEYS_JSON: %w", err)
		}
		for id, val := range parsed {
			if strings.TrimSpace(id) == "" || strings.TrimSpace(val) == "" {
				continue
			}
			keysB64[id] = val
		}
	}

	for _, e := range os.Environ() {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) != 2 {
			continue
		}
		k, v := parts[0], parts[1]
		if !strings.HasPrefix(k, "MASTER_KEY_") || !strings.HasSuffix(k, "_B64") {
			continue
		}
		if k == "MASTER_KEY_B64" {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, "MASTER_KEY_"), "_B64")
		if id == "" || v == "" {
			continue
		}
		keysB64[id] = v
	}

	current := mustEnv("MASTER_KEY_CURRENT_ID", "")
	if singleton := mustEnv("MASTER_KEY_B64", ""); singleton != "" {
		if current == "" {
			current = "default"
		}
		keysB64[current] = singleton
	}

	if len(keysB64) == 0 {
		return CryptoConfig{}, ErrMissingMasterKey
	}

	keys := make(map[string][]byte, len(keysB64))
	for id, b64 := range keysB64 {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return CryptoConfig{}, fmt.Errorf("decode master key %q: %w", id, err)
		}
		if len(raw) != 32 {
			return CryptoConfig{}, fmt.Errorf("master key %q must be 32 bytes after base64 decode", id)
		}
		keys[id] = raw
	}

	if current == "" {
		for id := range keys {
			current = id
			break
		}
	}
	if _, ok := keys[current]; !ok {
		return CryptoConfig{}, fmt.Errorf("MASTER_KEY_CURRENT_ID=%q does not exist in provided keys", current)
	}

	return CryptoConfig{
		CurrentKeyID: current,
		Keys:         keys,
	}, nil
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustBool(key string, def bool) bool {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func hostnameOr(def string) string {
	h, err := os.Hostname()
	if err != nil || strings.TrimSpace(h) == "" {
		return def
	}
	return h
}

// Package config loads and exposes service configuration (TOML).
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath         = "config.toml"
	DefaultHTTPAddr           = ":8080"
	DefaultJWTExpiresIn       = "24h"
	DefaultHubStore           = "memory"
	DefaultHubURL             = "http://127.0.0.1:8090"
	DefaultBoltPath           = "data/hub.bolt"
	DefaultOrchestratorURL    = "http://127.0.0.1:8081/bot"
	DefaultSearchURL          = "http://127.0.0.1:8082/search"
	DefaultTimeoutSeconds     = 30
	DefaultActiveTTLSeconds   = 30
	DefaultNegativeTTLSeconds = 5
	DefaultPinnedTTLSeconds   = 600
	DefaultCacheWaitMS        = 5000
	DefaultModeratorTimeoutMS = 2000
	DefaultRedisAddr          = "127.0.0.1:6379"
	DefaultPGHost             = "127.0.0.1"
	DefaultPGPort             = 5432
	DefaultPGUser             = "postgres"
	DefaultPGDatabase         = "accelerator"
	DefaultPGSSLMode          = "disable"
	DefaultQdrantURL          = "http://127.0.0.1:6334"

	// Upper bounds keep a stale active pointer short-lived even without push invalidation.
	MaxActiveTTLSeconds   = 60
	MaxNegativeTTLSeconds = 30
)

// Config is the root service configuration loaded from TOML.
type Config struct {
	Log          LogConfig          `toml:"log"`
	Server       ServerConfig       `toml:"server"`
	Auth         AuthConfig         `toml:"auth"`
	Hub          HubConfig          `toml:"hub"`
	Cache        CacheConfig        `toml:"cache"`
	Services     ServicesConfig     `toml:"services"`
	Moderator    ModeratorConfig    `toml:"moderator"`
	Conversation ConversationConfig `toml:"conversation"`
	Search       SearchConfig       `toml:"search"`
	Storage      StorageConfig      `toml:"storage"`
	Events       EventsConfig       `toml:"events"`
	Postgres     PostgresConfig     `toml:"postgres"`
	Redis        RedisConfig        `toml:"redis"`
	Qdrant       QdrantConfig       `toml:"qdrant"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AuthConfig holds the JWT secret guarding hub writes. An empty secret
// leaves the hub open.
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// HubConfig selects the hub storage driver and names the hub other
// services read from.
type HubConfig struct {
	Store       string   `toml:"store"`
	BoltPath    string   `toml:"bolt_path"`
	RedisPrefix string   `toml:"redis_prefix"`
	URL         string   `toml:"url"`
	PromptTypes []string `toml:"prompt_types"`
}

// CacheConfig bounds how long config reads are served from memory.
type CacheConfig struct {
	ActiveTTLSeconds   int `toml:"active_ttl_seconds"`
	NegativeTTLSeconds int `toml:"negative_ttl_seconds"`
	PinnedTTLSeconds   int `toml:"pinned_ttl_seconds"`
	WaitTimeoutMS      int `toml:"wait_timeout_ms"`
}

// ActiveTTL returns the ACTIVE entry lifetime, clamped to its upper bound.
func (c CacheConfig) ActiveTTL() time.Duration {
	return clampSeconds(c.ActiveTTLSeconds, DefaultActiveTTLSeconds, MaxActiveTTLSeconds)
}

// NegativeTTL returns the lifetime of cached misses, clamped to its upper bound.
func (c CacheConfig) NegativeTTL() time.Duration {
	return clampSeconds(c.NegativeTTLSeconds, DefaultNegativeTTLSeconds, MaxNegativeTTLSeconds)
}

// PinnedTTL returns the lifetime of entries for explicit versions.
func (c CacheConfig) PinnedTTL() time.Duration {
	if c.PinnedTTLSeconds <= 0 {
		return DefaultPinnedTTLSeconds * time.Second
	}
	return time.Duration(c.PinnedTTLSeconds) * time.Second
}

// WaitTimeout bounds how long a reader waits on another reader's fetch.
func (c CacheConfig) WaitTimeout() time.Duration {
	if c.WaitTimeoutMS <= 0 {
		return DefaultCacheWaitMS * time.Millisecond
	}
	return time.Duration(c.WaitTimeoutMS) * time.Millisecond
}

// ServicesConfig locates downstream services.
type ServicesConfig struct {
	OrchestratorURL string `toml:"orchestrator_url"`
	SearchURL       string `toml:"search_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Timeout returns the per-call deadline for downstream requests.
func (c ServicesConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ModeratorConfig configures content moderation. Without a URL the static
// keyword moderator is used.
type ModeratorConfig struct {
	URL          string   `toml:"url"`
	APIKey       string   `toml:"api_key"`
	TimeoutMS    int      `toml:"timeout_ms"`
	FailOpen     bool     `toml:"fail_open"`
	DenyKeywords []string `toml:"deny_keywords"`
	// RateLimit caps moderator calls per second; zero disables the cap.
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
}

// Timeout returns the moderator deadline.
func (c ModeratorConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return DefaultModeratorTimeoutMS * time.Millisecond
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// ConversationConfig selects the conversation store driver (memory or redis).
type ConversationConfig struct {
	Store    string `toml:"store"`
	TTLHours int    `toml:"ttl_hours"`
}

// SearchConfig selects the search backend (memory or qdrant).
type SearchConfig struct {
	Backend    string `toml:"backend"`
	CorpusPath string `toml:"corpus_path"`
}

// StorageConfig locates the image archive. An empty root disables it.
type StorageConfig struct {
	Root string `toml:"root"`
}

// EventsConfig selects how activation events travel (local or redis).
type EventsConfig struct {
	Backend string `toml:"backend"`
	Channel string `toml:"channel"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// QdrantConfig holds Qdrant base URL, API key and timeout.
type QdrantConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Hub: HubConfig{
			Store:    DefaultHubStore,
			BoltPath: DefaultBoltPath,
			URL:      DefaultHubURL,
		},
		Cache: CacheConfig{
			ActiveTTLSeconds:   DefaultActiveTTLSeconds,
			NegativeTTLSeconds: DefaultNegativeTTLSeconds,
			PinnedTTLSeconds:   DefaultPinnedTTLSeconds,
			WaitTimeoutMS:      DefaultCacheWaitMS,
		},
		Services: ServicesConfig{
			OrchestratorURL: DefaultOrchestratorURL,
			SearchURL:       DefaultSearchURL,
			TimeoutSeconds:  DefaultTimeoutSeconds,
		},
		Moderator: ModeratorConfig{
			TimeoutMS: DefaultModeratorTimeoutMS,
		},
		Conversation: ConversationConfig{
			Store: "memory",
		},
		Search: SearchConfig{
			Backend: "memory",
		},
		Events: EventsConfig{
			Backend: "local",
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
		},
		Qdrant: QdrantConfig{
			BaseURL: DefaultQdrantURL,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func clampSeconds(value, def, max int) time.Duration {
	if value <= 0 {
		value = def
	}
	if value > max {
		value = max
	}
	return time.Duration(value) * time.Second
}

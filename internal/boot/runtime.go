// Package boot provides runtime configuration for the accelerator services.
package boot

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/memohai/accelerator/internal/config"
)

// RuntimeConfig holds parsed runtime settings (JWT, listen address, service URLs).
// Values may be overridden by environment variables (e.g. HTTP_ADDR, HUB_URL).
type RuntimeConfig struct {
	JwtSecret       string
	JwtExpiresIn    time.Duration
	ServerAddr      string
	HubURL          string
	HubStore        string
	OrchestratorURL string
	// OrchestratorURLSet reports whether the orchestrator URL was chosen
	// explicitly rather than left at its default.
	OrchestratorURLSet bool
	SearchURL          string
	ModeratorURL       string
	RedisAddr          string
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides.
// The JWT secret is optional; without it hub writes are not authenticated.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	expiresIn := strings.TrimSpace(cfg.Auth.JWTExpiresIn)
	if expiresIn == "" {
		expiresIn = config.DefaultJWTExpiresIn
	}
	jwtExpiresIn, err := time.ParseDuration(expiresIn)
	if err != nil {
		return nil, fmt.Errorf("invalid jwt expires in: %w", err)
	}

	ret := &RuntimeConfig{
		JwtSecret:       cfg.Auth.JWTSecret,
		JwtExpiresIn:    jwtExpiresIn,
		ServerAddr:      cfg.Server.Addr,
		HubURL:          cfg.Hub.URL,
		HubStore:        cfg.Hub.Store,
		OrchestratorURL: cfg.Services.OrchestratorURL,
		SearchURL:       cfg.Services.SearchURL,
		ModeratorURL:    cfg.Moderator.URL,
		RedisAddr:       cfg.Redis.Addr,
	}

	overrides := map[string]*string{
		"HTTP_ADDR":        &ret.ServerAddr,
		"HUB_URL":          &ret.HubURL,
		"HUB_STORE":        &ret.HubStore,
		"ORCHESTRATOR_URL": &ret.OrchestratorURL,
		"SEARCH_URL":       &ret.SearchURL,
		"MODERATOR_URL":    &ret.ModeratorURL,
		"REDIS_ADDR":       &ret.RedisAddr,
		"JWT_SECRET":       &ret.JwtSecret,
	}
	for env, target := range overrides {
		if value := os.Getenv(env); value != "" {
			*target = value
		}
	}
	ret.OrchestratorURLSet = os.Getenv("ORCHESTRATOR_URL") != "" ||
		(cfg.Services.OrchestratorURL != "" && cfg.Services.OrchestratorURL != config.DefaultOrchestratorURL)
	return ret, nil
}

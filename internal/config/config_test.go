package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultHubStore, cfg.Hub.Store)
	assert.Equal(t, 30*time.Second, cfg.Cache.ActiveTTL())
	assert.Equal(t, 5*time.Second, cfg.Cache.NegativeTTL())
	assert.Equal(t, 10*time.Minute, cfg.Cache.PinnedTTL())
	assert.False(t, cfg.Moderator.FailOpen)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9000"

[hub]
store = "bolt"
prompt_types = ["AGENT_PROMPT_SUPPORT"]

[cache]
active_ttl_seconds = 600
negative_ttl_seconds = 2

[moderator]
fail_open = true
deny_keywords = ["forbidden"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "bolt", cfg.Hub.Store)
	assert.Equal(t, []string{"AGENT_PROMPT_SUPPORT"}, cfg.Hub.PromptTypes)
	assert.Equal(t, 60*time.Second, cfg.Cache.ActiveTTL(), "active ttl is clamped")
	assert.Equal(t, 2*time.Second, cfg.Cache.NegativeTTL())
	assert.True(t, cfg.Moderator.FailOpen)
	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\naddr="), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	require.Equal(t, path, resolved)
	require.Equal(t, Default().Addr, cfg.Addr)
	require.Equal(t, 24*time.Hour, cfg.JWTTTL)
	require.Len(t, cfg.SeedChannels, 1)
	require.Equal(t, "general", cfg.SeedChannels[0].Name)

	_, err = os.Stat(path)
	require.NoError(t, err)

	// The written file loads back to the same values.
	again, _, err := Load(nil, path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`addr: ":7000"
log_level: debug
rate_limit_per_minute: 5
max_message_bytes: 100
max_frame_bytes: 200
seed_channels:
  - name: lobby
    topic: say hi
  - name: ops
    topic: on call
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv("CHANNELCHAT_ADDR", ":7100")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)
	require.Equal(t, ":7100", cfg.Addr)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 5, cfg.RateLimitPerMinute)
	require.Equal(t, 100, cfg.HubOptions().MaxMessageBytes)
	require.Len(t, cfg.SeedChannels, 2)
	require.Equal(t, "on call", cfg.SeedChannels[1].Topic)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_message_bytes: 900\nmax_frame_bytes: 100\n"), 0o600))

	_, _, err := Load(nil, path)
	require.Error(t, err)
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":1", LogLevel: "warn"})
	require.Equal(t, ":1", cfg.Addr)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, Default().DatabasePath, cfg.DatabasePath)
}

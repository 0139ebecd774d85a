package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Preflight.MinDurationSecs)
	assert.Equal(t, 1200, cfg.Preflight.MaxDurationSecs)
	assert.Equal(t, 3, cfg.Video.MaxRetries)
	assert.Equal(t, 180, cfg.Video.DefaultDurationSecs)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 300, cfg.Breaker.CooldownSecs)
	assert.Equal(t, "private", cfg.VideoAI.LibraryMode)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
log:
  level: debug
  format: console
video:
  max_retries: 5
  backoff_no_videos_secs: 20
breaker:
  cooldown_secs: 60
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Video.MaxRetries)
	assert.Equal(t, 20.0, cfg.Video.BackoffNoVideosSecs)
	assert.Equal(t, 60, cfg.Breaker.CooldownSecs)
	// Untouched defaults survive.
	assert.Equal(t, 3, cfg.Video.MaxPollErrors)
}

func TestInitLogger_RejectsBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nonsense", Format: "json"})
	require.Error(t, err)
}

func TestInitLogger_ConsoleFormat(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "console"}))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 40, cfg.Engine.StartingLife)
	assert.Equal(t, time.Duration(0), cfg.Engine.StepTimeout)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9000
database:
  url: postgres://localhost:5432/edh
  max_conns: 20
logging:
  level: debug
  format: console
engine:
  starting_life: 20
  step_timeout: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.Equal(t, "postgres://localhost:5432/edh", cfg.Database.URL)
	assert.Equal(t, int32(20), cfg.Database.MaxConns)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 20, cfg.Engine.StartingLife)
	assert.Equal(t, 30*time.Second, cfg.Engine.StepTimeout)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("MTGEDH_SERVER_PORT", "7777")
	t.Setenv("MTGEDH_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidationRejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: 99999\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "logging:\n  format: xml\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "engine:\n  starting_life: 0\n"))
	require.Error(t, err)
}

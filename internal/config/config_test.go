package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, int64(64<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 30, cfg.Server.UploadsPerMin)
	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Store.TTL)
	assert.Equal(t, 10, cfg.Engine.PageSize)
	assert.Equal(t, 64, cfg.Engine.CacheEntries)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 10*time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: slots.db
log:
  level: debug
  format: console
server:
  port: 9090
engine:
  page_size: 25
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "slots.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Engine.PageSize)
	// Defaults still apply for unset values
	assert.Equal(t, 64, cfg.Engine.CacheEntries)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ELECTRA_STORE_DRIVER", "postgres")
	t.Setenv("ELECTRA_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("ELECTRA_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config a live server would accept.
func validDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			MaxUploadBytes: 64 << 20,
			UploadsPerMin:  30,
		},
		Store:   StoreConfig{Driver: "none"},
		Engine:  EngineConfig{PageSize: 10, CacheEntries: 64},
		Session: SessionConfig{TTL: 2 * time.Hour, SweepInterval: 10 * time.Minute},
	}
}

func TestValidateServe_Valid(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_PageSizeBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Engine.PageSize = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.page_size must be between 1 and 1000")

	cfg.Engine.PageSize = 1001
	err = cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.page_size must be between 1 and 1000")

	cfg.Engine.PageSize = 1000
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateStoreDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "slots.db"
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Store.Driver = "oracle"
	err = cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be one of")
}

func TestValidateLoadMode(t *testing.T) {
	cfg := validDefaults()
	// load mode only cares about the store
	cfg.Server.Port = 0
	assert.NoError(t, cfg.Validate("load"))

	cfg.Store.Driver = "postgres"
	err := cfg.Validate("load")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

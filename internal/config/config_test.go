package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tabletop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// withEnv isolates a test from the process environment.
func withEnv(vars map[string]string) env.Options {
	if vars == nil {
		vars = map[string]string{}
	}
	return env.Options{Prefix: EnvPrefix, Environment: vars}
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := load("", withEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, language.English, cfg.Game.LanguageTag())
}

func TestFileThenEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  shutdown_timeout: 3s
storage:
  driver: sqlite
  path: /var/lib/tabletop.db
game:
  language: de
  module: skirmish.yaml
`)
	cfg, err := load(path, withEnv(map[string]string{
		"TABLETOP_SERVER_PORT": "9100",
		"TABLETOP_LOG_LEVEL":   "debug",
		"PORT":                 "1",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/tabletop.db", cfg.Storage.Path)
	assert.Equal(t, "skirmish.yaml", cfg.Game.Module)
	assert.Equal(t, language.German, cfg.Game.LanguageTag())
}

func TestValidateRejects(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"port":       func(c *Config) { c.Server.Port = 70000 },
		"read limit": func(c *Config) { c.Server.ReadLimit = 0 },
		"rate":       func(c *Config) { c.Server.CommandRate = -1 },
		"driver":     func(c *Config) { c.Storage.Driver = "postgres" },
		"sqlite":     func(c *Config) { c.Storage.Driver, c.Storage.Path = "sqlite", "" },
		"encoding":   func(c *Config) { c.Log.Encoding = "xml" },
		"language":   func(c *Config) { c.Game.Language = "not a tag" },
		"history":    func(c *Config) { c.Game.HistoryLimit = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"), withEnv(nil))
	assert.Error(t, err)

	_, err = load(writeConfig(t, "server: ["), withEnv(nil))
	assert.Error(t, err)

	_, err = load("", withEnv(map[string]string{"TABLETOP_SERVER_PORT": "abc"}))
	assert.Error(t, err)

	_, err = load("", withEnv(map[string]string{"TABLETOP_STORAGE_DRIVER": "nosql"}))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

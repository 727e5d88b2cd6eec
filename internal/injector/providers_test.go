package injector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/tabletop/internal/config"
)

func TestInitializeApp(t *testing.T) {
	dir := t.TempDir()
	module := filepath.Join(dir, "module.yaml")
	require.NoError(t, os.WriteFile(module, []byte("setup:\n  - id: a\n    type: \"piece;;;;A\"\n"), 0o600))
	path := filepath.Join(dir, "tabletop.yaml")
	body := "storage:\n  driver: sqlite\n  path: " + filepath.Join(dir, "t.db") + "\ngame:\n  module: " + module + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	app, cleanup, err := InitializeApp(ConfigPath(path))
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "sqlite", app.Config.Storage.Driver)
	assert.NotNil(t, app.Logger)
	assert.NotNil(t, app.Server)
}

func TestProvideModuleWithoutPath(t *testing.T) {
	m, err := ProvideModule(config.Default())
	require.NoError(t, err)
	assert.Nil(t, m)

	cfg := config.Default()
	cfg.Game.Module = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = ProvideModule(cfg)
	assert.Error(t, err)
}

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/tabletop/internal/config"
	"github.com/zeusync/tabletop/internal/core/events/bus"
	"github.com/zeusync/tabletop/internal/core/game"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/storage"
	"github.com/zeusync/tabletop/internal/core/storage/interfaces"
	"github.com/zeusync/tabletop/internal/server"
)

// ConfigPath is the YAML configuration file; empty means defaults and
// environment only.
type ConfigPath string

// App is everything cmd/server runs.
type App struct {
	Config config.Config
	Logger log.Log
	Server *server.Server
}

// ProviderSet wires the application.
var ProviderSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	ProvideJournal,
	ProvideModule,
	bus.New,
	server.New,
	wire.Struct(new(App), "*"),
)

// ProvideConfig loads the configuration from path and the environment.
func ProvideConfig(path ConfigPath) (config.Config, error) {
	return config.Load(string(path))
}

// ProvideLogger builds the root logger from the log section.
func ProvideLogger(cfg config.Config) log.Log {
	return log.NewWithConfig(log.Config{
		Level:    log.ParseLevel(cfg.Log.Level),
		Encoding: cfg.Log.Encoding,
	})
}

// ProvideJournal opens the configured journal; the cleanup closes it.
func ProvideJournal(cfg config.Config, logger log.Log) (interfaces.Journal, func(), error) {
	journal, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := journal.Close(); err != nil {
			logger.Error("Journal close failed", log.Error(err))
		}
	}
	return journal, cleanup, nil
}

// ProvideModule loads the configured game module, or nil when none is set.
func ProvideModule(cfg config.Config) (*game.Module, error) {
	if cfg.Game.Module == "" {
		return nil, nil
	}
	return game.LoadModule(cfg.Game.Module)
}

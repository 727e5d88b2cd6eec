package config

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the configuration reads,
// e.g. TABLETOP_SERVER_PORT.
const EnvPrefix = "TABLETOP_"

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root of the server configuration.
type Config struct {
	Server  Server  `yaml:"server" envPrefix:"SERVER_"`
	Log     Log     `yaml:"log" envPrefix:"LOG_"`
	Storage Storage `yaml:"storage" envPrefix:"STORAGE_"`
	Game    Game    `yaml:"game" envPrefix:"GAME_"`
}

// Server configures the websocket listener and its rooms.
type Server struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	ReadLimit       int64         `yaml:"read_limit" env:"READ_LIMIT"`
	Token           string        `yaml:"token" env:"TOKEN"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// SnapshotEvery is how many journaled commands a room keeps before it
	// writes a new snapshot.
	SnapshotEvery int `yaml:"snapshot_every" env:"SNAPSHOT_EVERY"`
	// CommandRate caps the commands one connection may send per second.
	// Zero disables the limit.
	CommandRate int `yaml:"command_rate" env:"COMMAND_RATE"`
}

// Addr is the host:port the server listens on.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Log selects the logger level and encoding.
type Log struct {
	Level    string `yaml:"level" env:"LEVEL"`
	Encoding string `yaml:"encoding" env:"ENCODING"`
}

// Storage selects the journal driver.
type Storage struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	Path   string `yaml:"path" env:"PATH"`
}

// Game configures the sessions hosted by each room.
type Game struct {
	Language     string `yaml:"language" env:"LANGUAGE"`
	Module       string `yaml:"module" env:"MODULE"`
	HistoryLimit int    `yaml:"history_limit" env:"HISTORY_LIMIT"`
}

// LanguageTag parses Language; Validate has already rejected bad tags.
func (g Game) LanguageTag() language.Tag {
	tag, err := language.Parse(g.Language)
	if err != nil {
		return language.English
	}
	return tag
}

// Default returns the configuration used when no file or variable overrides it.
func Default() Config {
	return Config{
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadLimit:       1 << 20,
			ShutdownTimeout: 10 * time.Second,
			SnapshotEvery:   100,
			CommandRate:     50,
		},
		Log:     Log{Level: "info", Encoding: "json"},
		Storage: Storage{Driver: "memory", Path: "tabletop.db"},
		Game:    Game{Language: "en", HistoryLimit: 200},
	}
}

// Load reads the YAML file at path, when given, over the defaults and then
// applies TABLETOP_ environment variables.
func Load(path string) (Config, error) {
	return load(path, env.Options{Prefix: EnvPrefix})
}

func load(path string, opts env.Options) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "decode config %s", path)
		}
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, errors.Wrap(err, "parse env")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate returns the first invalid setting it finds.
func (c Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Wrapf(ErrInvalidConfig, "server port %d", c.Server.Port)
	}
	if c.Server.ReadLimit <= 0 {
		return errors.Wrap(ErrInvalidConfig, "server read limit must be positive")
	}
	if c.Server.SnapshotEvery < 0 {
		return errors.Wrap(ErrInvalidConfig, "snapshot interval must not be negative")
	}
	if c.Server.CommandRate < 0 {
		return errors.Wrap(ErrInvalidConfig, "command rate must not be negative")
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return errors.Wrap(ErrInvalidConfig, "sqlite storage needs a path")
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "storage driver %q", c.Storage.Driver)
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		return errors.Wrapf(ErrInvalidConfig, "log encoding %q", c.Log.Encoding)
	}
	if _, err := language.Parse(c.Game.Language); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "game language %q", c.Game.Language)
	}
	if c.Game.HistoryLimit < 0 {
		return errors.Wrap(ErrInvalidConfig, "history limit must not be negative")
	}
	return nil
}

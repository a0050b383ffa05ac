package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Engine  EngineConfig  `yaml:"engine" mapstructure:"engine"`
	Session SessionConfig `yaml:"session" mapstructure:"session"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the dashboard HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
	UploadsPerMin  int      `yaml:"uploads_per_min" mapstructure:"uploads_per_min"`
}

// StoreConfig configures optional slot persistence.
type StoreConfig struct {
	Driver      string        `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"`
	TTL         time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// EngineConfig tunes the filter-and-aggregate engine's integration points.
type EngineConfig struct {
	PageSize     int `yaml:"page_size" mapstructure:"page_size"`
	CacheEntries int `yaml:"cache_entries" mapstructure:"cache_entries"`
}

// SessionConfig configures session lifetime.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ELECTRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_upload_bytes", int64(64<<20))
	v.SetDefault("server.uploads_per_min", 30)
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.ttl", "24h")
	v.SetDefault("engine.page_size", 10)
	v.SetDefault("engine.cache_entries", 64)
	v.SetDefault("session.ttl", "2h")
	v.SetDefault("session.sweep_interval", "10m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields the given mode depends on. Modes: "serve"
// (HTTP server), "load"/"export" (one-shot CLI commands).
func (c *Config) Validate(mode string) error {
	var problems []string

	requireStore := func() {
		switch c.Store.Driver {
		case "", "none":
		case "sqlite", "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for driver "+c.Store.Driver)
			}
		default:
			problems = append(problems, "store.driver must be one of none, sqlite, postgres")
		}
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		if c.Server.MaxUploadBytes <= 0 {
			problems = append(problems, "server.max_upload_bytes must be > 0")
		}
		if c.Engine.PageSize < 1 || c.Engine.PageSize > 1000 {
			problems = append(problems, "engine.page_size must be between 1 and 1000")
		}
		if c.Engine.CacheEntries < 1 {
			problems = append(problems, "engine.cache_entries must be >= 1")
		}
		if c.Session.TTL <= 0 {
			problems = append(problems, "session.ttl must be > 0")
		}
		requireStore()
	case "load", "export":
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

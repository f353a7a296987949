// Package config loads the service configuration from defaults, an optional
// YAML file and BUGTRACKER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "BUGTRACKER"

// Supported storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DB struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

type Config struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	StaticDir       string        `mapstructure:"static_dir" yaml:"static_dir"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	Metrics         bool          `mapstructure:"metrics" yaml:"metrics"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DB              DB            `mapstructure:"db" yaml:"db"`
}

// Default is the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Addr:            ":8080",
		StaticDir:       "web/dist",
		LogLevel:        "info",
		Metrics:         true,
		ShutdownTimeout: 5 * time.Second,
		DB: DB{
			Driver: DriverSQLite,
			Path:   "data/bugtracker.db",
		},
	}
}

// New returns a viper instance with defaults registered and environment
// lookup enabled, e.g. BUGTRACKER_DB_DRIVER for db.driver.
func New() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("addr", d.Addr)
	v.SetDefault("static_dir", d.StaticDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("metrics", d.Metrics)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("db.driver", d.DB.Driver)
	v.SetDefault("db.path", d.DB.Path)
	v.SetDefault("db.dsn", d.DB.DSN)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file, if any, and decodes the merged settings.
// An explicit file must exist; otherwise BUGTRACKER_CONFIG is consulted and
// then ./bugtracker.yaml, both optional.
func Load(v *viper.Viper, file string) (Config, error) {
	if file == "" {
		file = os.Getenv(envPrefix + "_CONFIG")
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("bugtracker")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			return errors.New("db.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DB.DSN == "" {
			return errors.New("db.dsn is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown db.driver %q", c.DB.Driver)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel (debug, info, warn, error).
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Redacted returns a copy safe to print: a password in a URL style DSN is masked.
func (c Config) Redacted() Config {
	u, err := url.Parse(c.DB.DSN)
	if err != nil || u.User == nil {
		return c
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
		c.DB.DSN = u.String()
	}
	return c
}

// Package config loads layered configuration: flag defaults, an optional
// YAML file, GEOLINGO_* environment variables and explicitly set flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variables. A double underscore
// separates sections, e.g. GEOLINGO_STORAGE__SQLITE_PATH.
const EnvPrefix = "GEOLINGO_"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Env     string  `koanf:"env" validate:"oneof=development production"`
	DataDir string  `koanf:"data_dir" validate:"required"`
	HTTP    HTTP    `koanf:"http"`
	Storage Storage `koanf:"storage"`
}

type HTTP struct {
	Addr string `koanf:"addr" validate:"required,hostname_port"`
}

type Storage struct {
	Driver          string        `koanf:"driver" validate:"oneof=sqlite postgres"`
	SQLitePath      string        `koanf:"sqlite_path"` // defaults to <data_dir>/geolingo.db
	PostgresURL     string        `koanf:"postgres_url" validate:"required_if=Driver postgres"`
	MaxConns        int32         `koanf:"max_conns" validate:"gte=1"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
}

// RegisterFlags defines the config flags and their defaults on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML config file")
	fs.String("env", "development", "Environment: development or production")
	fs.String("data_dir", "data", "Directory for the database and cloned decks")
	fs.String("http.addr", ":8080", "HTTP listen address")
	fs.String("storage.driver", DriverSQLite, "Storage backend: sqlite or postgres")
	fs.String("storage.sqlite_path", "", "SQLite database file (default <data_dir>/geolingo.db)")
	fs.String("storage.postgres_url", "", "PostgreSQL connection string")
	fs.Int32("storage.max_conns", 10, "Maximum PostgreSQL pool connections")
	fs.Duration("storage.max_conn_lifetime", 30*time.Minute, "Maximum lifetime of a PostgreSQL connection")
}

// Load builds the configuration from a parsed flag set that was prepared with
// RegisterFlags. A .env file in the working directory is loaded first when
// present; it never overrides variables that are already set.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	path, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Unchanged flags only fill keys that no earlier layer set.
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(cfg.DataDir, "geolingo.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct constraints.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// ReposDir is where git deck sources are checked out.
func (c *Config) ReposDir() string {
	return filepath.Join(c.DataDir, "repos")
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

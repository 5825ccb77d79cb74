// Package config loads geoff's layered configuration.
//
// Precedence, highest first: environment variables, .env.local, .env, the
// config file, built-in defaults. Environment variables use the GEOFF_
// prefix with dots replaced by underscores (GEOFF_DATABASE_HOST), and the
// legacy names POSTGRES_DB, POSTGRES_USER, POSTGRES_PASSWORD, DB_HOST,
// DB_PORT and LLM_API_URL are honored as well.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/geoff/internal/llm"
	"github.com/roach88/geoff/internal/postgis"
)

// EnvPrefix prefixes every environment variable geoff reads.
const EnvPrefix = "GEOFF"

// DefaultFile is the config file looked up in the working directory when no
// path is given.
const DefaultFile = "geoff.yaml"

// Catalog sources.
const (
	CatalogDatabase = "database"
	CatalogFile     = "file"
)

// Config is the complete runtime configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Query    QueryConfig    `mapstructure:"query"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	History  HistoryConfig  `mapstructure:"history"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig configures the PostGIS pool.
type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SearchPath     string `mapstructure:"search_path"`
	MaxConns       int    `mapstructure:"max_conns"`
	ConnectRetries int    `mapstructure:"connect_retries"`
}

// LLMConfig configures the plan generator.
type LLMConfig struct {
	URL     string        `mapstructure:"url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// QueryConfig configures question answering.
type QueryConfig struct {
	Retries     int           `mapstructure:"retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	CacheSize   int           `mapstructure:"cache_size"`
	Strict      bool          `mapstructure:"strict"`
	Parallelism int           `mapstructure:"parallelism"`
	MaxExamples int           `mapstructure:"max_examples"`
}

// CatalogConfig selects where table metadata comes from.
type CatalogConfig struct {
	Source string `mapstructure:"source"`
	File   string `mapstructure:"file"`
	Schema string `mapstructure:"schema"`
}

// HistoryConfig locates the query history database. An empty path
// disables history.
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

// defaults lists every key with its default. Keys not listed here are not
// read from the environment.
var defaults = map[string]any{
	"server.addr":          ":8000",
	"server.read_timeout":  "15s",
	"server.write_timeout": "120s",
	"server.cors_origins":  []string{"*"},

	"database.url":             "",
	"database.host":            "localhost",
	"database.port":            5432,
	"database.name":            "geoff",
	"database.user":            "postgres",
	"database.password":        "",
	"database.search_path":     "data,public",
	"database.max_conns":       8,
	"database.connect_retries": 5,

	"llm.url":     "http://localhost:11434/api/generate",
	"llm.model":   "llama3.2",
	"llm.timeout": "120s",

	"query.retries":      2,
	"query.retry_delay":  "0s",
	"query.cache_size":   512,
	"query.strict":       true,
	"query.parallelism":  4,
	"query.max_examples": 10,

	"catalog.source": CatalogDatabase,
	"catalog.file":   "",
	"catalog.schema": "data",

	"history.path": "geoff.db",

	"log.format": "json",
	"log.level":  "info",
}

// legacyEnv maps keys to the environment names used by earlier deployments.
var legacyEnv = map[string]string{
	"database.name":     "POSTGRES_DB",
	"database.user":     "POSTGRES_USER",
	"database.password": "POSTGRES_PASSWORD",
	"database.host":     "DB_HOST",
	"database.port":     "DB_PORT",
	"llm.url":           "LLM_API_URL",
}

// envName returns the prefixed environment variable for a key.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load reads configuration from fs. An empty path looks for DefaultFile in
// the working directory and tolerates its absence; an explicit path must
// exist.
func Load(fs afero.Fs, path string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	for key, value := range defaults {
		v.SetDefault(key, value)
		names := []string{key, envName(key)}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		if err := v.BindEnv(names...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if path == "" {
		exists, err := afero.Exists(fs, DefaultFile)
		if err != nil {
			return nil, fmt.Errorf("config: stat %s: %w", DefaultFile, err)
		}
		if exists {
			path = DefaultFile
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := applyDotenv(v, fs); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// applyDotenv layers .env and then .env.local over the config file. A value
// is applied only when the real environment does not already set it.
func applyDotenv(v *viper.Viper, fs afero.Fs) error {
	values := map[string]string{}
	for _, name := range []string{".env", ".env.local"} {
		f, err := fs.Open(name)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: open %s: %w", name, err)
		}
		parsed, err := godotenv.Parse(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("config: parse %s: %w", name, err)
		}
		for k, val := range parsed {
			values[k] = val
		}
	}

	for key := range defaults {
		names := []string{envName(key)}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		if inEnv(names) {
			continue
		}
		for _, name := range names {
			if val, ok := values[name]; ok {
				v.Set(key, val)
				break
			}
		}
	}
	return nil
}

func inEnv(names []string) bool {
	for _, name := range names {
		if _, ok := os.LookupEnv(name); ok {
			return true
		}
	}
	return false
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Addr != "", "server.addr is required")
	check(c.Database.MaxConns > 0, "database.max_conns must be > 0, got %d", c.Database.MaxConns)
	check(c.Database.ConnectRetries >= 0, "database.connect_retries must be >= 0, got %d", c.Database.ConnectRetries)
	check(c.LLM.URL != "", "llm.url is required")
	check(c.LLM.Model != "", "llm.model is required")
	check(c.Query.Retries >= 0, "query.retries must be >= 0, got %d", c.Query.Retries)
	check(c.Query.RetryDelay >= 0, "query.retry_delay must be >= 0, got %s", c.Query.RetryDelay)
	check(c.Query.CacheSize >= 0, "query.cache_size must be >= 0, got %d", c.Query.CacheSize)
	check(c.Query.Parallelism > 0, "query.parallelism must be > 0, got %d", c.Query.Parallelism)
	check(c.Query.MaxExamples >= 0, "query.max_examples must be >= 0, got %d", c.Query.MaxExamples)

	switch c.Catalog.Source {
	case CatalogDatabase, CatalogFile:
	default:
		check(false, "catalog.source must be %q or %q, got %q", CatalogDatabase, CatalogFile, c.Catalog.Source)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		check(false, "log.format must be \"json\" or \"console\", got %q", c.Log.Format)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		check(false, "log.level: %v", err)
	}

	return errors.Join(errs...)
}

// PostGIS returns the pool options.
func (d DatabaseConfig) PostGIS() postgis.Options {
	return postgis.Options{
		URL:            d.URL,
		Host:           d.Host,
		Port:           d.Port,
		Name:           d.Name,
		User:           d.User,
		Password:       d.Password,
		SearchPath:     d.SearchPath,
		MaxConns:       int32(d.MaxConns),
		ConnectRetries: uint(d.ConnectRetries),
	}
}

// Client returns the generator client options.
func (l LLMConfig) Client() llm.Options {
	return llm.Options{URL: l.URL, Model: l.Model, Timeout: l.Timeout}
}

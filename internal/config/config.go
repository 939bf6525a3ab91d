// Package config resolves the vexum home directory and the backend configuration from
// <home>/config.yaml, .env files, the environment and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend names accepted in config.yaml and VEXUM_BACKEND.
const (
	BackendSQLite     = "sqlite"
	BackendPostgres   = "postgres"
	BackendRemote     = "remote"
	BackendRemoteLive = "remote-live"
	BackendGRPC       = "grpc"
)

// Backends lists the accepted backend names.
var Backends = []string{BackendSQLite, BackendPostgres, BackendRemote, BackendRemoteLive, BackendGRPC}

// Config is the resolved runtime configuration.
type Config struct {
	Backend  string `yaml:"backend"`
	DSN      string `yaml:"dsn,omitempty"`       // postgres connection string
	Path     string `yaml:"path,omitempty"`      // sqlite file; default <home>/protected/vexum.db
	URL      string `yaml:"url,omitempty"`       // remote vexum instance
	APIKey   string `yaml:"api_key,omitempty"`   // sent to the remote instance
	GRPCAddr string `yaml:"grpc_addr,omitempty"` // collections gRPC server
	Timezone string `yaml:"timezone,omitempty"`  // IANA name for report periods and due dates

	// ServerAPIKey, when set, is required by this instance's HTTP API.
	ServerAPIKey string `yaml:"server_api_key,omitempty"`
}

// Overrides are command-line values; non-empty fields win over everything else.
type Overrides struct {
	Backend string
	DSN     string
	URL     string
}

// Path returns <home>/config.yaml.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// LoadFile reads <home>/config.yaml. A missing file yields a zero Config and no error.
func LoadFile(home string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(Path(home))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", Path(home), err)
	}
	return cfg, nil
}

// SaveFile writes cfg to <home>/config.yaml.
func SaveFile(home string, cfg Config) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(home), data, 0o600)
}

// LoadEnv loads <home>/.env and then envFile (if non-empty) into the process environment.
// Variables already set are not overwritten. A missing <home>/.env is fine; a missing
// envFile is an error.
func LoadEnv(home, envFile string) error {
	homeEnv := filepath.Join(home, ".env")
	if _, err := os.Stat(homeEnv); err == nil {
		if err := godotenv.Load(homeEnv); err != nil {
			return fmt.Errorf("load %s: %w", homeEnv, err)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return nil
}

// Resolve merges config.yaml, the environment and ov, in increasing precedence, and
// validates the result. The default backend is sqlite.
func Resolve(home string, ov Overrides) (Config, error) {
	cfg, err := LoadFile(home)
	if err != nil {
		return Config{}, err
	}
	setFromEnv(&cfg.Backend, "VEXUM_BACKEND")
	setFromEnv(&cfg.DSN, "DATABASE_URL")
	setFromEnv(&cfg.Path, "VEXUM_DB_PATH")
	setFromEnv(&cfg.URL, "VEXUM_REMOTE_URL")
	setFromEnv(&cfg.APIKey, "VEXUM_API_KEY")
	setFromEnv(&cfg.GRPCAddr, "VEXUM_GRPC_ADDR")
	setFromEnv(&cfg.Timezone, "VEXUM_TZ")
	setFromEnv(&cfg.ServerAPIKey, "VEXUM_SERVER_API_KEY")

	if ov.Backend != "" {
		cfg.Backend = ov.Backend
	}
	if ov.DSN != "" {
		cfg.DSN = ov.DSN
	}
	if ov.URL != "" {
		cfg.URL = ov.URL
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendSQLite
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend == BackendSQLite && cfg.Path == "" {
		cfg.Path = filepath.Join(ProtectedDir(home), "vexum.db")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected backend has the parameters it needs.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.Path == "" {
			return errors.New("sqlite backend: path is required")
		}
	case BackendPostgres:
		if c.DSN == "" {
			return errors.New("postgres backend: dsn (or DATABASE_URL) is required")
		}
	case BackendRemote, BackendRemoteLive:
		if c.URL == "" {
			return fmt.Errorf("%s backend: url (or VEXUM_REMOTE_URL) is required", c.Backend)
		}
	case BackendGRPC:
		if c.GRPCAddr == "" {
			return errors.New("grpc backend: grpc_addr (or VEXUM_GRPC_ADDR) is required")
		}
	default:
		return fmt.Errorf("unknown backend %q (want one of %s)", c.Backend, strings.Join(Backends, ", "))
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the configured time zone, or time.Local when unset.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

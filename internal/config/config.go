package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values for configuration fields.
const (
	DefaultMigrationsDir    = "./migrations"
	DefaultInitFile         = "000_init.sql"
	DefaultLedgerSchema     = "public"
	DefaultLedgerTable      = "migrations"
	DefaultLockTimeout      = 5 * time.Second
	DefaultStatementTimeout = time.Duration(0)
)

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	DatabaseURL      string
	MigrationsDir    string
	InitFile         string
	LedgerSchema     string
	LedgerTable      string
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	Environments     []Environment

	// Env preselects an environment by name, skipping the select prompt.
	Env string
	// Password is taken from MIGRATE_PASSWORD only; it is never read from the file.
	Password string
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	DatabaseURL      string        `yaml:"database_url"`
	MigrationsDir    string        `yaml:"migrations_dir"`
	InitFile         *string       `yaml:"init_file"`
	LedgerSchema     string        `yaml:"ledger_schema"`
	LedgerTable      string        `yaml:"ledger_table"`
	LockTimeout      string        `yaml:"lock_timeout"`
	StatementTimeout string        `yaml:"statement_timeout"`
	Environments     []Environment `yaml:"environments"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		MigrationsDir:    DefaultMigrationsDir,
		InitFile:         DefaultInitFile,
		LedgerSchema:     DefaultLedgerSchema,
		LedgerTable:      DefaultLedgerTable,
		LockTimeout:      DefaultLockTimeout,
		StatementTimeout: DefaultStatementTimeout,
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	if raw.DatabaseURL != "" {
		cfg.DatabaseURL = raw.DatabaseURL
	}

	if raw.MigrationsDir != "" {
		cfg.MigrationsDir = raw.MigrationsDir
	}

	// An explicit empty init_file disables the initializer.
	if raw.InitFile != nil {
		cfg.InitFile = *raw.InitFile
	}

	if raw.LedgerSchema != "" {
		cfg.LedgerSchema = raw.LedgerSchema
	}

	if raw.LedgerTable != "" {
		cfg.LedgerTable = raw.LedgerTable
	}

	if raw.LockTimeout != "" {
		d, err := time.ParseDuration(raw.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing lock_timeout %q: %w", raw.LockTimeout, err)
		}

		cfg.LockTimeout = d
	}

	if raw.StatementTimeout != "" {
		d, err := time.ParseDuration(raw.StatementTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing statement_timeout %q: %w", raw.StatementTimeout, err)
		}

		cfg.StatementTimeout = d
	}

	envs, err := normalizeEnvironments(raw.Environments)
	if err != nil {
		return nil, err
	}

	cfg.Environments = envs

	return cfg, nil
}

// MergeEnv overrides config fields from MIGRATE_* environment variables.
func MergeEnv(cfg *Config) {
	if v := os.Getenv("MIGRATE_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}

	if v := os.Getenv("MIGRATE_MIGRATIONS_DIR"); v != "" {
		cfg.MigrationsDir = v
	}

	if v := os.Getenv("MIGRATE_LEDGER_SCHEMA"); v != "" {
		cfg.LedgerSchema = v
	}

	if v := os.Getenv("MIGRATE_LEDGER_TABLE"); v != "" {
		cfg.LedgerTable = v
	}

	if v := os.Getenv("MIGRATE_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LockTimeout = d
		}
	}

	if v := os.Getenv("MIGRATE_STATEMENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StatementTimeout = d
		}
	}

	if v := os.Getenv("MIGRATE_ENV"); v != "" {
		cfg.Env = v
	}

	if v := os.Getenv("MIGRATE_PASSWORD"); v != "" {
		cfg.Password = v
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are left alone. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("loading env file %s: %w", path, err)
	}

	return nil
}

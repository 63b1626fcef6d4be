package config

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/peircecrit/peirce/internal/stats"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultDBPath    = "./peirce.db"
	DefaultPort      = 8080
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Environment variables that override the config file.
const (
	EnvConfig   = "PEIRCE_CONFIG"
	EnvDBPath   = "PEIRCE_DB_PATH"
	EnvPort     = "PEIRCE_PORT"
	EnvLogLevel = "PEIRCE_LOG_LEVEL"
)

// Config is the full configuration tree parsed from YAML.
type Config struct {
	// DBPath is the SQLite file holding the threshold cache.
	DBPath string `yaml:"db_path"`

	Log    LogConfig    `yaml:"log"`
	Solver SolverConfig `yaml:"solver"`
	Server ServerConfig `yaml:"server"`
	Table  TableConfig  `yaml:"table"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: text | json.
	Format string `yaml:"format"`
}

// SolverConfig tunes the fixed-point iteration.
type SolverConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`

	// TokenEnv names the environment variable holding the admin token.
	// When unset or empty a random token is generated at startup.
	TokenEnv string `yaml:"token_env"`

	// TokenFile is where the active admin token is written. Defaults to
	// .peirce-token next to the database.
	TokenFile string `yaml:"token_file"`
}

// Token returns the admin token resolved from the environment.
func (s ServerConfig) Token() string {
	if s.TokenEnv == "" {
		return ""
	}
	return os.Getenv(s.TokenEnv)
}

// TableConfig is the default grid for the table command and /api/table.
type TableConfig struct {
	Observations []float64 `yaml:"observations"`
	Outliers     []float64 `yaml:"outliers"`
	Unknowns     []float64 `yaml:"unknowns"`
}

// Spec converts the grid for the solver.
func (t TableConfig) Spec() stats.TableSpec {
	return stats.TableSpec{
		Observations: t.Observations,
		Outliers:     t.Outliers,
		Unknowns:     t.Unknowns,
	}
}

// Default returns a Config holding only built-in defaults.
func Default() *Config {
	spec := stats.DefaultTableSpec()
	return &Config{
		DBPath: DefaultDBPath,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Solver: SolverConfig{
			MaxIterations: stats.DefaultMaxIterations,
		},
		Server: ServerConfig{
			Port: DefaultPort,
		},
		Table: TableConfig{
			Observations: spec.Observations,
			Outliers:     spec.Outliers,
			Unknowns:     spec.Unknowns,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// Validate checks required fields and structural constraints.
func Validate(cfg *Config) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Log.Format)
	}
	if cfg.Solver.MaxIterations < 1 {
		return fmt.Errorf("solver.max_iterations must be positive")
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}

	axes := []struct {
		name   string
		values []float64
	}{
		{"table.observations", cfg.Table.Observations},
		{"table.outliers", cfg.Table.Outliers},
		{"table.unknowns", cfg.Table.Unknowns},
	}
	for _, axis := range axes {
		if len(axis.values) == 0 {
			return fmt.Errorf("%s must not be empty", axis.name)
		}
		for i, v := range axis.values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%s[%d] must be finite", axis.name, i)
			}
		}
	}
	for i, m := range cfg.Table.Unknowns {
		if m < 0 {
			return fmt.Errorf("table.unknowns[%d] must be non-negative", i)
		}
	}

	return nil
}

// Package config provides configuration loading and structs for the carprice
// trainer and server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/carprice/internal/dataset"
	"github.com/hyperjump/carprice/internal/gbm"
)

// Configuration validation errors.
var (
	ErrInvalidReferenceYear = errors.New("features.reference_year must be between 1900 and 2200")
	ErrInvalidTestFraction  = errors.New("dataset.test_fraction must be in [0, 1)")
	ErrInvalidPriceBounds   = errors.New("dataset.price_bounds.min must be non-negative and not exceed max")
	ErrInvalidMargin        = errors.New("inference.display_margin must be in [0, 1)")
	ErrInvalidRegistry      = errors.New("registry.driver must be 'sqlite' or 'postgres'")
	ErrMissingRegistryDSN   = errors.New("registry.dsn is required for the postgres driver")
	ErrMissingArtifactPath  = errors.New("model.artifact_path is required")
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Features    FeaturesConfig    `yaml:"features"`
	Dataset     DatasetConfig     `yaml:"dataset"`
	Training    TrainingConfig    `yaml:"training"`
	Model       ModelConfig       `yaml:"model"`
	Inference   InferenceConfig   `yaml:"inference"`
	Registry    RegistryConfig    `yaml:"registry"`
	Comparables ComparablesConfig `yaml:"comparables"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// FeaturesConfig holds settings that change feature semantics. They are read
// by both the trainer and the server.
type FeaturesConfig struct {
	// ReferenceYear is the "current year" used to turn model year into age.
	ReferenceYear int `yaml:"reference_year"`
}

// DatasetConfig holds training data settings.
type DatasetConfig struct {
	Path         string         `yaml:"path"`
	// TestFraction is the validation share; nil means 0.2 and 0 trains on
	// every row.
	TestFraction *float64       `yaml:"test_fraction"`
	Seed         int64          `yaml:"seed"`
	PriceBounds  dataset.Bounds `yaml:"price_bounds"`
}

// TrainingConfig holds learner parameters.
type TrainingConfig struct {
	gbm.Params   `yaml:",inline"`
	VerboseEvery int `yaml:"verbose_every"`
}

// ModelConfig holds artifact settings.
type ModelConfig struct {
	ArtifactPath string `yaml:"artifact_path"`
	// WatchArtifact loads the artifact once it appears when it is missing at
	// server startup.
	WatchArtifact *bool `yaml:"watch_artifact"`
}

// WatchArtifactOrDefault returns whether to watch for a missing artifact;
// defaults to true when unset.
func (m *ModelConfig) WatchArtifactOrDefault() bool {
	if m.WatchArtifact != nil {
		return *m.WatchArtifact
	}
	return true
}

// TestFractionOrDefault returns the validation share, 0.2 when unset.
func (d *DatasetConfig) TestFractionOrDefault() float64 {
	if d.TestFraction != nil {
		return *d.TestFraction
	}
	return DefaultTestFraction
}

// InferenceConfig holds serving settings.
type InferenceConfig struct {
	// DisplayMargin is the symmetric fraction shown around an estimate. It is
	// a presentation aid, not a statistical interval.
	DisplayMargin           float64 `yaml:"display_margin"`
	Currency                string  `yaml:"currency"`
	AllowReferenceYearDrift bool    `yaml:"allow_reference_year_drift"`
	LogPredictions          bool    `yaml:"log_predictions"`
}

// RegistryConfig selects where training runs and predictions are recorded.
type RegistryConfig struct {
	Driver       string `yaml:"driver"`
	DatabasePath string `yaml:"database_path"`
	DSN          string `yaml:"dsn"`
}

// ComparablesConfig holds the listing index settings.
type ComparablesConfig struct {
	Enabled   bool   `yaml:"enabled"`
	IndexPath string `yaml:"index_path"`
	Limit     int    `yaml:"limit"`
}

// Load reads and parses the config file at path, applies defaults, expands
// paths and applies CARPRICE_* environment overrides (a .env file in the
// working directory is read first when present).
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	_ = godotenv.Load()
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Dataset.Path = expandPath(cfg.Dataset.Path, configDir)
	cfg.Model.ArtifactPath = expandPath(cfg.Model.ArtifactPath, configDir)
	cfg.Registry.DatabasePath = expandPath(cfg.Registry.DatabasePath, configDir)
	cfg.Comparables.IndexPath = expandPath(cfg.Comparables.IndexPath, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from CARPRICE_* environment variables.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("CARPRICE_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CARPRICE_DEBUG: %w", err)
		}
		cfg.Debug = b
	}
	if v := os.Getenv("CARPRICE_REFERENCE_YEAR"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CARPRICE_REFERENCE_YEAR: %w", err)
		}
		cfg.Features.ReferenceYear = y
	}
	if v := os.Getenv("CARPRICE_SERVER_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CARPRICE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("CARPRICE_DATASET_PATH"); v != "" {
		cfg.Dataset.Path = v
	}
	if v := os.Getenv("CARPRICE_ARTIFACT_PATH"); v != "" {
		cfg.Model.ArtifactPath = v
	}
	if v := os.Getenv("CARPRICE_REGISTRY_DRIVER"); v != "" {
		cfg.Registry.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("CARPRICE_REGISTRY_DSN"); v != "" {
		cfg.Registry.DSN = v
	}
	return nil
}

// Validate checks settings that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Features.ReferenceYear < 1900 || c.Features.ReferenceYear > 2200 {
		return ErrInvalidReferenceYear
	}
	if f := c.Dataset.TestFractionOrDefault(); f < 0 || f >= 1 {
		return ErrInvalidTestFraction
	}
	if c.Dataset.PriceBounds.Min < 0 || c.Dataset.PriceBounds.Min > c.Dataset.PriceBounds.Max {
		return ErrInvalidPriceBounds
	}
	if c.Inference.DisplayMargin < 0 || c.Inference.DisplayMargin >= 1 {
		return ErrInvalidMargin
	}
	switch c.Registry.Driver {
	case "sqlite":
	case "postgres":
		if c.Registry.DSN == "" {
			return ErrMissingRegistryDSN
		}
	default:
		return ErrInvalidRegistry
	}
	if c.Model.ArtifactPath == "" {
		return ErrMissingArtifactPath
	}
	if err := c.Training.Params.Validate(); err != nil {
		return fmt.Errorf("training: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pario-ai/pariopipe/pkg/models"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that points at a config file
// and takes precedence over the files under the project root.
const EnvConfigPath = "PARIOPIPE_CONFIG"

// ErrNoConfigFile is returned by Locate when no config file exists.
var ErrNoConfigFile = errors.New("no config file found")

// Config holds all pipeline configuration.
type Config struct {
	Defaults   models.Override            `yaml:"defaults" toml:"defaults" json:"defaults"`
	Stages     map[string]models.Override `yaml:"stages" toml:"stages" json:"stages,omitempty"`
	Operations map[string]models.Override `yaml:"operations" toml:"operations" json:"operations,omitempty"`
	Fallbacks  map[string][]string        `yaml:"fallbacks" toml:"fallbacks" json:"fallbacks,omitempty"`
	Pricing    map[string]PriceConfig     `yaml:"pricing" toml:"pricing" json:"pricing,omitempty"`
	Monitor    MonitorConfig              `yaml:"monitor" toml:"monitor" json:"monitor"`
	Logging    LoggingConfig              `yaml:"logging" toml:"logging" json:"logging"`
	Metrics    MetricsConfig              `yaml:"metrics" toml:"metrics" json:"metrics"`
}

// PriceConfig holds USD rates per token.
type PriceConfig struct {
	InputRate  float64 `yaml:"input_rate" toml:"input_rate" json:"input_rate"`
	OutputRate float64 `yaml:"output_rate" toml:"output_rate" json:"output_rate"`
}

// MonitorConfig controls the cost monitor.
type MonitorConfig struct {
	Persist            bool          `yaml:"persist" toml:"persist" json:"persist"`
	LogDir             string        `yaml:"log_dir" toml:"log_dir" json:"log_dir"`
	DBFile             string        `yaml:"db_file" toml:"db_file" json:"db_file"`
	DowngradeMetric    string        `yaml:"downgrade_metric" toml:"downgrade_metric" json:"downgrade_metric" jsonschema:"enum=daily_total,enum=rolling_window"`
	DowngradeThreshold float64       `yaml:"downgrade_threshold" toml:"downgrade_threshold" json:"downgrade_threshold"`
	Window             time.Duration `yaml:"window" toml:"window" json:"window,omitempty"`
	RolloverSchedule   string        `yaml:"rollover_schedule" toml:"rollover_schedule" json:"rollover_schedule"`
	RetentionDays      int           `yaml:"retention_days" toml:"retention_days" json:"retention_days"`
}

// DBPath returns the usage store location for a project root.
func (m MonitorConfig) DBPath(root string) string {
	dir := m.LogDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return filepath.Join(dir, m.DBFile)
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format     string `yaml:"format" toml:"format" json:"format" jsonschema:"enum=text,enum=json"`
	File       string `yaml:"file" toml:"file" json:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups" json:"max_backups"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Listen    string `yaml:"listen" toml:"listen" json:"listen"`
	Namespace string `yaml:"namespace" toml:"namespace" json:"namespace"`
}

const (
	modelSonnet4  = "claude-sonnet-4-20250514"
	modelSonnet35 = "claude-3-5-sonnet-20241022"
	modelHaiku35  = "claude-3-5-haiku-20241022"
)

func ptr[T any](v T) *T { return &v }

// Default returns a Config with the built-in pipeline defaults. It is also
// what the registry falls back to when the config source cannot be read.
func Default() *Config {
	return &Config{
		Defaults: models.Override{
			Model:       modelSonnet35,
			Temperature: ptr(0.3),
			MaxTokens:   ptr(4000),
			TopP:        ptr(1.0),
			BatchSize:   ptr(10),
		},
		Stages: map[string]models.Override{
			"political":   {Model: modelSonnet4},
			"qualitative": {Model: modelSonnet4},
			"sentiment":   {Model: modelHaiku35, BatchSize: ptr(20)},
			"topics":      {Model: modelHaiku35},
			"network":     {},
			"review":      {},
			"validation":  {Temperature: ptr(0.0)},
		},
		Operations: map[string]models.Override{},
		Fallbacks: map[string][]string{
			modelSonnet4:  {modelSonnet35, modelHaiku35},
			modelSonnet35: {modelHaiku35},
		},
		Pricing: map[string]PriceConfig{
			"claude-opus-4-20250514":   {InputRate: 0.000015, OutputRate: 0.000075},
			modelSonnet4:               {InputRate: 0.000003, OutputRate: 0.000015},
			modelSonnet35:              {InputRate: 0.000003, OutputRate: 0.000015},
			modelHaiku35:               {InputRate: 0.0000008, OutputRate: 0.000004},
			"claude-3-haiku-20240307":  {InputRate: 0.00000025, OutputRate: 0.00000125},
			"claude-3-opus-20240229":   {InputRate: 0.000015, OutputRate: 0.000075},
			"claude-3-sonnet-20240229": {InputRate: 0.000003, OutputRate: 0.000015},
		},
		Monitor: MonitorConfig{
			Persist:            true,
			LogDir:             "logs",
			DBFile:             "cost_monitor.db",
			DowngradeMetric:    string(models.MetricDailyTotal),
			DowngradeThreshold: 10,
			RolloverSchedule:   "0 0 * * *",
			RetentionDays:      1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Listen:    ":9464",
			Namespace: "pariopipe",
		},
	}
}

// Load reads a YAML or TOML config file, expands environment variables and
// decodes it over the defaults. Files ending in .toml are parsed as TOML.
// A stage entry in the file is layered over the built-in entry of the same
// stage, so it only needs the fields it changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	builtin := Default().Stages
	if cfg.Stages == nil {
		cfg.Stages = make(map[string]models.Override, len(builtin))
	}
	for stage, layer := range builtin {
		cfg.Stages[stage] = models.Merge(layer, cfg.Stages[stage])
	}

	return cfg, nil
}

// LoadForRoot loads <root>/.env if present, then the config file found by
// Locate. Variables already set in the environment are not overridden.
func LoadForRoot(root string) (*Config, string, error) {
	envFile := filepath.Join(root, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, "", fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	path, err := Locate(root)
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	if err := Validate(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Locate returns the config file for a project root: $PARIOPIPE_CONFIG if
// set, otherwise the first existing config/pipeline.{yaml,yml,toml}.
func Locate(root string) (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%s=%s: %w", EnvConfigPath, p, ErrNoConfigFile)
		}
		return p, nil
	}
	for _, name := range []string{"pipeline.yaml", "pipeline.yml", "pipeline.toml"} {
		p := filepath.Join(root, "config", name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s: %w", filepath.Join(root, "config"), ErrNoConfigFile)
}

// PricingEntries flattens the pricing map.
func (c *Config) PricingEntries() []models.PricingEntry {
	entries := make([]models.PricingEntry, 0, len(c.Pricing))
	for model, p := range c.Pricing {
		entries = append(entries, models.PricingEntry{
			Model:      model,
			InputRate:  p.InputRate,
			OutputRate: p.OutputRate,
		})
	}
	return entries
}

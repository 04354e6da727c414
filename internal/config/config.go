// Package config loads reconciliation settings from a YAML file and
// RECONCILE_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default retrieval addresses: the Austin Animal Center intake and outcome exports.
const (
	DefaultIntakeURL  = "https://data.austintexas.gov/api/views/wter-evkm/rows.csv?accessType=DOWNLOAD"
	DefaultOutcomeURL = "https://data.austintexas.gov/api/views/9t4d-g238/rows.csv?accessType=DOWNLOAD"
)

type Config struct {
	Sources     map[string]string `mapstructure:"sources"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Normalize   NormalizeConfig   `mapstructure:"normalize"`
	Correlation CorrelationConfig `mapstructure:"correlation"`
	Derive      []DeriveConfig    `mapstructure:"derive"`
	Output      OutputConfig      `mapstructure:"output"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type HTTPConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

type NormalizeConfig struct {
	SnakeCaseHeaders bool       `mapstructure:"snake_case_headers"`
	Intake           []DateRule `mapstructure:"intake"`
	Outcome          []DateRule `mapstructure:"outcome"`
}

// DateRule re-renders one timestamp column at a strftime precision.
type DateRule struct {
	Column   string `mapstructure:"column"`
	Format   string `mapstructure:"format"`
	Optional bool   `mapstructure:"optional"` // skip when the column is absent
}

type CorrelationConfig struct {
	EntityColumn      string `mapstructure:"entity_column"`
	IntakeTimeColumn  string `mapstructure:"intake_time_column"`
	OutcomeTimeColumn string `mapstructure:"outcome_time_column"`
	IntakeSuffix      string `mapstructure:"intake_suffix"`
	OutcomeSuffix     string `mapstructure:"outcome_suffix"`
	Order             string `mapstructure:"order"` // source | chronological | strict
}

// DeriveConfig describes one elapsed-time column computed on the joined table.
type DeriveConfig struct {
	Start  string `mapstructure:"start"`
	End    string `mapstructure:"end"`
	Unit   string `mapstructure:"unit"` // days | years
	Suffix string `mapstructure:"suffix"`
}

type OutputConfig struct {
	Path       string `mapstructure:"path"`   // "" or "-" means stdout
	Format     string `mapstructure:"format"` // csv | json | yaml
	TimeLayout string `mapstructure:"time_layout"`
}

type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/reconcile")
	}

	// Environment variables override (RECONCILE_OUTPUT_FORMAT, etc.)
	v.SetEnvPrefix("RECONCILE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading any file. It
// panics if the built-in defaults do not decode.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(fmt.Sprintf("config: built-in defaults: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sources", map[string]string{
		"intake":  DefaultIntakeURL,
		"outcome": DefaultOutcomeURL,
	})
	v.SetDefault("http.timeout", "60s")
	v.SetDefault("http.user_agent", "reconcile/1.0")
	v.SetDefault("http.requests_per_second", 2)
	v.SetDefault("http.burst", 1)

	v.SetDefault("normalize.snake_case_headers", true)
	v.SetDefault("normalize.intake", []map[string]any{
		{"column": "datetime", "format": "%Y-%m-%d %H:%M"},
	})
	v.SetDefault("normalize.outcome", []map[string]any{
		{"column": "datetime", "format": "%Y-%m-%d %H:%M"},
		{"column": "date_of_birth", "format": "%Y-%m-%d", "optional": true},
	})

	v.SetDefault("correlation.entity_column", "animal_id")
	v.SetDefault("correlation.intake_time_column", "datetime")
	v.SetDefault("correlation.outcome_time_column", "datetime")
	v.SetDefault("correlation.intake_suffix", "_intake")
	v.SetDefault("correlation.outcome_suffix", "_outcome")
	v.SetDefault("correlation.order", "source")

	v.SetDefault("derive", []map[string]any{
		{"start": "date_of_birth", "end": "datetime_intake", "unit": "years", "suffix": "intake"},
		{"start": "date_of_birth", "end": "datetime_outcome", "unit": "years", "suffix": "outcome"},
		{"start": "datetime_intake", "end": "datetime_outcome", "unit": "days"},
	})

	v.SetDefault("output.path", "")
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.time_layout", "2006-01-02 15:04:05")

	v.SetDefault("metrics.textfile_path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	if c.Correlation.EntityColumn == "" {
		return fmt.Errorf("correlation.entity_column is required")
	}
	if c.Correlation.IntakeTimeColumn == "" || c.Correlation.OutcomeTimeColumn == "" {
		return fmt.Errorf("correlation time columns are required")
	}
	if c.Correlation.IntakeSuffix == c.Correlation.OutcomeSuffix {
		return fmt.Errorf("correlation suffixes must differ")
	}
	switch c.Correlation.Order {
	case "", "source", "chronological", "strict":
	default:
		return fmt.Errorf("invalid correlation.order: %s", c.Correlation.Order)
	}
	for i, r := range append(append([]DateRule{}, c.Normalize.Intake...), c.Normalize.Outcome...) {
		if r.Column == "" || r.Format == "" {
			return fmt.Errorf("normalize rule %d: column and format are required", i)
		}
	}
	for i, d := range c.Derive {
		if d.Start == "" || d.End == "" {
			return fmt.Errorf("derive %d: start and end are required", i)
		}
		switch d.Unit {
		case "", "days", "years":
		default:
			return fmt.Errorf("derive %d: invalid unit: %s", i, d.Unit)
		}
	}
	switch c.Output.Format {
	case "csv", "json", "yaml":
	default:
		return fmt.Errorf("invalid output.format: %s", c.Output.Format)
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must be non-negative")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be non-negative")
	}
	return nil
}

// Package config loads the process-level configuration a deployment
// needs to construct a pkg/alfred.Engine: which database dialect/DSN
// pkg/dbadapter should open, which model backs each
// llmboundary.Complexity tier, and whether tracing/metrics are on.
//
// Grounded on hector's pkg/config/loader.go: read raw bytes, parse
// YAML into a generic map, expand ${VAR}/${VAR:-default}/$VAR
// environment references recursively across that map (env.go's
// expandEnvVars/expandValue, trimmed to hector's second, map-based
// implementation rather than its string-regexp one — the recursive
// map walk is the version that survives expanding a config file's
// nested structure without re-serializing it), decode via
// mapstructure keyed on the `yaml` tag, then apply defaults. Domain
// wiring (agents, tools, document stores) has no equivalent here —
// this module takes its domain.Domain as a Go value at construction,
// not a config-driven registry — so only the provider/database/
// observability sections of hector's Config survive.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/jv92admin/alfredagain-sub002/pkg/dbadapter"
	"github.com/jv92admin/alfredagain-sub002/pkg/llmboundary"
	"github.com/jv92admin/alfredagain-sub002/pkg/observability"
)

// Config is the full process configuration (spec §6.1's entry points
// are constructed around one of these plus a domain.Domain).
type Config struct {
	Name          string              `yaml:"name,omitempty"`
	Database      DatabaseConfig      `yaml:"database,omitempty"`
	LLM           LLMConfig           `yaml:"llm,omitempty"`
	Observability ObservabilityConfig `yaml:"observability,omitempty"`
}

// DatabaseConfig selects and connects pkg/dbadapter's backing store.
type DatabaseConfig struct {
	Dialect string `yaml:"dialect,omitempty"` // "postgres" | "mysql" | "sqlite"
	DSN     string `yaml:"dsn,omitempty"`
}

// LLMConfig selects the model behind each llmboundary.Complexity tier
// and the encoding pkg/context's token counter budgets against.
type LLMConfig struct {
	APIKeyEnv    string            `yaml:"api_key_env,omitempty"`
	CounterModel string            `yaml:"counter_model,omitempty"`
	ModelTiers   map[string]string `yaml:"model_tiers,omitempty"` // "low"|"medium"|"high" -> model name
	MaxRetries   int               `yaml:"max_retries,omitempty"`
}

// ObservabilityConfig mirrors observability.TracerConfig plus the
// metrics on/off switch.
type ObservabilityConfig struct {
	TracingEnabled bool    `yaml:"tracing_enabled,omitempty"`
	ServiceName    string  `yaml:"service_name,omitempty"`
	SamplingRate   float64 `yaml:"sampling_rate,omitempty"`
	MetricsEnabled bool    `yaml:"metrics_enabled,omitempty"`
}

// SetDefaults fills in the fields a deployment is allowed to omit.
func (c *Config) SetDefaults() {
	if c.Database.Dialect == "" {
		c.Database.Dialect = "sqlite"
	}
	if c.LLM.CounterModel == "" {
		c.LLM.CounterModel = "gpt-4"
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 2
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.SamplingRate == 0 {
		c.Observability.SamplingRate = 1.0
	}
}

// Validate checks the fields Load cannot safely default.
func (c *Config) Validate() error {
	switch dbadapter.Dialect(c.Database.Dialect) {
	case dbadapter.Postgres, dbadapter.MySQL, dbadapter.SQLite:
	default:
		return fmt.Errorf("config: unknown database dialect %q", c.Database.Dialect)
	}
	if c.Database.Dialect != string(dbadapter.SQLite) && c.Database.DSN == "" {
		return fmt.Errorf("config: database.dsn is required for dialect %q", c.Database.Dialect)
	}
	return nil
}

// Load reads path, expands environment references, and decodes into a
// validated Config. envFile, if non-empty, is loaded into the process
// environment first via godotenv — missing envFile is not an error,
// since a deployment may set real environment variables instead of
// shipping a .env file.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: loading env file: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}
	raw = expandEnvVars(raw)

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("config: building decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenAdapter opens the database/sql connection this config describes.
func (c *Config) OpenAdapter() (*dbadapter.SQLAdapter, error) {
	return dbadapter.Open(dbadapter.Dialect(c.Database.Dialect), c.Database.DSN)
}

// ModelTiers converts the configured model names into a
// llmboundary.ModelTiers, falling back to the package default for any
// tier left unset.
func (c *Config) ModelTiers() llmboundary.ModelTiers {
	tiers := llmboundary.DefaultModelTiers()
	for k, v := range c.LLM.ModelTiers {
		if v != "" {
			tiers[llmboundary.Complexity(k)] = v
		}
	}
	return tiers
}

// TracerConfig converts the observability section into
// observability.TracerConfig.
func (c *Config) TracerConfig() observability.TracerConfig {
	return observability.TracerConfig{
		Enabled:      c.Observability.TracingEnabled,
		ServiceName:  c.Observability.ServiceName,
		SamplingRate: c.Observability.SamplingRate,
	}
}

// APIKey reads the LLM provider's API key out of the environment
// variable this config names.
func (c *Config) APIKey() string {
	if c.LLM.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.LLM.APIKeyEnv)
}

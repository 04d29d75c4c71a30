// Package config provides configuration structures and loading for metaport.
package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	Source     EndpointConfig   `yaml:"source" mapstructure:"source"`
	Target     EndpointConfig   `yaml:"target" mapstructure:"target"`
	Selective  SelectiveConfig  `yaml:"selective" mapstructure:"selective"`
	Entities   map[string]bool  `yaml:"entities" mapstructure:"entities"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Import     ImportConfig     `yaml:"import" mapstructure:"import"`
	Processing ProcessingConfig `yaml:"processing" mapstructure:"processing"`
	Advanced   AdvancedConfig   `yaml:"advanced" mapstructure:"advanced"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// EndpointConfig identifies one metadata catalog instance.
type EndpointConfig struct {
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	JWTToken  string `yaml:"jwt_token" mapstructure:"jwt_token"`
}

// SelectiveConfig narrows a run to entities linked to the named domains.
// With an empty domain list every entity of the enabled kinds is in scope.
type SelectiveConfig struct {
	Domains                []string `yaml:"domains" mapstructure:"domains"`
	LinkedDataProductsOnly bool     `yaml:"linked_data_products_only" mapstructure:"linked_data_products_only"`
	LinkedAssetsOnly       bool     `yaml:"linked_assets_only" mapstructure:"linked_assets_only"`
}

// ExportConfig represents export-side settings.
type ExportConfig struct {
	OutputDir             string `yaml:"output_dir" mapstructure:"output_dir"`
	IncludeDeleted        bool   `yaml:"include_deleted" mapstructure:"include_deleted"`
	IncludeSystemEntities bool   `yaml:"include_system_entities" mapstructure:"include_system_entities"`
}

// ImportConfig represents import-side settings.
type ImportConfig struct {
	InputDir                  string   `yaml:"input_dir" mapstructure:"input_dir"`
	UpdateExisting            bool     `yaml:"update_existing" mapstructure:"update_existing"`
	SkipOnError               bool     `yaml:"skip_on_error" mapstructure:"skip_on_error"`
	CreateMissingDependencies bool     `yaml:"create_missing_dependencies" mapstructure:"create_missing_dependencies"`
	ImportOrder               []string `yaml:"import_order" mapstructure:"import_order"` // hint, validated against the dependency graph
}

// ProcessingConfig represents batch processing settings shared by both
// pipelines.
type ProcessingConfig struct {
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
}

// AdvancedConfig tunes the retry controller and worker pool. Durations are
// expressed in seconds to match the configuration file format.
type AdvancedConfig struct {
	RequestTimeout float64 `yaml:"request_timeout" mapstructure:"request_timeout"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelay     float64 `yaml:"retry_delay" mapstructure:"retry_delay"`
	MaxWorkers     int     `yaml:"max_workers" mapstructure:"max_workers"`
}

// RequestTimeoutDuration returns the per-call timeout as a time.Duration.
func (a AdvancedConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(a.RequestTimeout * float64(time.Second))
}

// RetryDelayDuration returns the initial retry delay as a time.Duration.
func (a AdvancedConfig) RetryDelayDuration() time.Duration {
	return time.Duration(a.RetryDelay * float64(time.Second))
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Entities: map[string]bool{},
		Export: ExportConfig{
			OutputDir: "export",
		},
		Import: ImportConfig{
			InputDir:    "export",
			SkipOnError: true,
		},
		Processing: ProcessingConfig{
			BatchSize: 100,
		},
		Advanced: AdvancedConfig{
			RequestTimeout: 30,
			MaxRetries:     3,
			RetryDelay:     1,
			MaxWorkers:     4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// EnabledEntities returns the kind names enabled under entities.*, in no
// particular order. An empty map means every registered kind is in scope;
// that expansion happens at the registry layer where declaration order is
// known.
func (c *Config) EnabledEntities() []string {
	var names []string
	for name, enabled := range c.Entities {
		if enabled {
			names = append(names, name)
		}
	}
	return names
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat string, batchSize, maxWorkers int) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if batchSize > 0 {
		c.Processing.BatchSize = batchSize
	}
	if maxWorkers > 0 {
		c.Advanced.MaxWorkers = maxWorkers
	}
}

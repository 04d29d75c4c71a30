package config

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 100, cfg.Processing.BatchSize)
	assert.Equal(t, 4, cfg.Advanced.MaxWorkers)
	assert.Equal(t, 3, cfg.Advanced.MaxRetries)
	assert.Equal(t, float64(30), cfg.Advanced.RequestTimeout)
	assert.True(t, cfg.Import.SkipOnError)
	assert.False(t, cfg.Import.UpdateExisting)
	assert.False(t, cfg.Export.IncludeDeleted)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestAdvancedConfig_Durations(t *testing.T) {
	adv := AdvancedConfig{RequestTimeout: 2.5, RetryDelay: 0.25}

	assert.Equal(t, 2500*time.Millisecond, adv.RequestTimeoutDuration())
	assert.Equal(t, 250*time.Millisecond, adv.RetryDelayDuration())
}

func TestEnabledEntities(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Entities = map[string]bool{
		"domain":       true,
		"data_product": true,
		"table":        false,
	}

	names := cfg.EnabledEntities()
	sort.Strings(names)
	assert.Equal(t, []string{"data_product", "domain"}, names)
}

func TestEnabledEntities_Empty(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.EnabledEntities())
}

func TestApplyOverrides(t *testing.T) {
	cfg := DefaultConfig()

	cfg.ApplyOverrides("debug", "text", 500, 16)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 500, cfg.Processing.BatchSize)
	assert.Equal(t, 16, cfg.Advanced.MaxWorkers)
}

func TestApplyOverrides_ZeroValuesIgnored(t *testing.T) {
	cfg := DefaultConfig()

	cfg.ApplyOverrides("", "", 0, 0)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 100, cfg.Processing.BatchSize)
	assert.Equal(t, 4, cfg.Advanced.MaxWorkers)
}

package processing

import (
	"github.com/amrherek/OJO-DynamicDiscount/internal/config"
)

// Config is the per-request view of the processing tuning.
type Config struct {
	MaxConcurrentPackages int
	MaxConcurrentChunks   int
	ContractsPerChunk     int
	Retry                 RetryPolicy
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrentPackages: 10,
		MaxConcurrentChunks:   10,
		ContractsPerChunk:     1000,
		Retry:                 DefaultRetryPolicy(),
	}
}

func FromTuning(t config.Tuning) Config {
	return Config{
		MaxConcurrentPackages: t.MaxConcurrentPackages,
		MaxConcurrentChunks:   t.MaxConcurrentChunks,
		ContractsPerChunk:     t.ContractsPerChunk,
		Retry: RetryPolicy{
			MaxAttempts:     t.RetryMaxAttempts,
			InitialInterval: t.RetryInitialInterval,
			Multiplier:      t.RetryMultiplier,
		},
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.MaxConcurrentPackages <= 0 {
		c.MaxConcurrentPackages = defaults.MaxConcurrentPackages
	}
	if c.MaxConcurrentChunks <= 0 {
		c.MaxConcurrentChunks = defaults.MaxConcurrentChunks
	}
	if c.ContractsPerChunk <= 0 {
		c.ContractsPerChunk = defaults.ContractsPerChunk
	}
	c.Retry = c.Retry.withDefaults()
	return c
}

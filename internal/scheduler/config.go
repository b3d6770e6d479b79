package scheduler

import (
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/config"
)

// Config controls the status job interval.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: 30 * time.Second,
		JobTimeout:  10 * time.Second,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Status.Enabled,
		RunInterval: cfg.Status.Interval,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

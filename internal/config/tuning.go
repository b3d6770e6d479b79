package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Tuning is the runtime-adjustable part of the processing configuration.
type Tuning struct {
	MaxConcurrentPackages int           `mapstructure:"maxConcurrentPackages"`
	MaxConcurrentChunks   int           `mapstructure:"maxConcurrentChunks"`
	ContractsPerChunk     int           `mapstructure:"contractsPerChunk"`
	PackageSize           int           `mapstructure:"packageSize"`
	RetryMaxAttempts      int           `mapstructure:"retryMaxAttempts"`
	RetryInitialInterval  time.Duration `mapstructure:"retryInitialInterval"`
	RetryMultiplier       float64       `mapstructure:"retryMultiplier"`
}

func DefaultTuning(cfg ProcessingConfig) Tuning {
	return Tuning{
		MaxConcurrentPackages: cfg.MaxConcurrentPackages,
		MaxConcurrentChunks:   cfg.MaxConcurrentChunks,
		ContractsPerChunk:     cfg.ContractsPerChunk,
		PackageSize:           cfg.PackageSize,
		RetryMaxAttempts:      cfg.RetryMaxAttempts,
		RetryInitialInterval:  cfg.RetryInitialInterval,
		RetryMultiplier:       cfg.RetryMultiplier,
	}
}

type TuningHolder struct {
	current atomic.Value // holds Tuning
}

// NewStaticTuningHolder returns a holder that never reloads.
func NewStaticTuningHolder(t Tuning) *TuningHolder {
	holder := &TuningHolder{}
	holder.current.Store(t)
	return holder
}

func NewTuningHolder(cfg Config, log *zap.Logger) (*TuningHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.tuning")

	v := viper.New()

	v.SetConfigName("dyndisc")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/dyndisc")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DYNDISC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultTuning(cfg.Processing)
	v.SetDefault("processing.maxConcurrentPackages", defaults.MaxConcurrentPackages)
	v.SetDefault("processing.maxConcurrentChunks", defaults.MaxConcurrentChunks)
	v.SetDefault("processing.contractsPerChunk", defaults.ContractsPerChunk)
	v.SetDefault("processing.packageSize", defaults.PackageSize)
	v.SetDefault("processing.retryMaxAttempts", defaults.RetryMaxAttempts)
	v.SetDefault("processing.retryInitialInterval", defaults.RetryInitialInterval)
	v.SetDefault("processing.retryMultiplier", defaults.RetryMultiplier)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var tuning Tuning
	if err := v.UnmarshalKey("processing", &tuning); err != nil {
		return nil, err
	}
	if err := ValidateTuning(tuning); err != nil {
		return nil, err
	}

	holder := &TuningHolder{}
	holder.current.Store(tuning)

	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Tuning
		if err := v.UnmarshalKey("processing", &updated); err != nil {
			log.Warn("tuning reload failed", zap.Error(err))
			return
		}
		if err := ValidateTuning(updated); err != nil {
			log.Warn("invalid tuning ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("tuning reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *TuningHolder) Get() Tuning {
	return h.current.Load().(Tuning)
}

func ValidateTuning(t Tuning) error {
	var errs []error
	if t.MaxConcurrentPackages <= 0 {
		errs = append(errs, errors.New("processing.maxConcurrentPackages must be positive"))
	}
	if t.MaxConcurrentChunks <= 0 {
		errs = append(errs, errors.New("processing.maxConcurrentChunks must be positive"))
	}
	if t.ContractsPerChunk <= 0 {
		errs = append(errs, errors.New("processing.contractsPerChunk must be positive"))
	}
	if t.PackageSize <= 0 {
		errs = append(errs, errors.New("processing.packageSize must be positive"))
	}
	if t.RetryMaxAttempts <= 0 {
		errs = append(errs, errors.New("processing.retryMaxAttempts must be positive"))
	}
	if t.RetryInitialInterval < 0 {
		errs = append(errs, errors.New("processing.retryInitialInterval cannot be negative"))
	}
	if t.RetryMultiplier < 1 {
		errs = append(errs, errors.New("processing.retryMultiplier must be at least 1"))
	}
	return errors.Join(errs...)
}

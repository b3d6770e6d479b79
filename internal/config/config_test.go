package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, GuardBackendDB, cfg.Guard.Backend)
	assert.Equal(t, "dyn_disc", cfg.Guard.Component)
	assert.Equal(t, GrantModeProcedure, cfg.Grant.Mode)
	assert.True(t, cfg.Grant.Enabled)
	assert.Equal(t, 5, cfg.Processing.RetryMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Processing.RetryInitialInterval)
	assert.Equal(t, 2.0, cfg.Processing.RetryMultiplier)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GUARD_BACKEND", "Redis")
	t.Setenv("GRANT_MODE", "TABLE")
	t.Setenv("GRANT_ENABLED", "false")
	t.Setenv("PACKAGE_SIZE", "250")
	t.Setenv("RETRY_INITIAL_INTERVAL", "500ms")
	t.Setenv("MAX_CONCURRENT_CHUNKS", "not-a-number")

	cfg := Load()

	assert.Equal(t, GuardBackendRedis, cfg.Guard.Backend)
	assert.Equal(t, GrantModeTable, cfg.Grant.Mode)
	assert.False(t, cfg.Grant.Enabled)
	assert.Equal(t, 250, cfg.Processing.PackageSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Processing.RetryInitialInterval)
	assert.Equal(t, 10, cfg.Processing.MaxConcurrentChunks, "unparsable values fall back")
}

func TestValidateTuning(t *testing.T) {
	good := DefaultTuning(Load().Processing)
	require.NoError(t, ValidateTuning(good))

	bad := good
	bad.PackageSize = 0
	bad.RetryMultiplier = 0.5
	err := ValidateTuning(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processing.packageSize must be positive")
	assert.Contains(t, err.Error(), "processing.retryMultiplier must be at least 1")
}

func TestTuningHolderWithoutFileUsesEnvDefaults(t *testing.T) {
	t.Setenv("CONTRACTS_PER_CHUNK", "50")
	holder, err := NewTuningHolder(Load(), zap.NewNop())
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, 50, got.ContractsPerChunk)
	assert.Equal(t, 5000, got.PackageSize)
}

func TestStaticTuningHolder(t *testing.T) {
	holder := NewStaticTuningHolder(Tuning{PackageSize: 3})
	assert.Equal(t, 3, holder.Get().PackageSize)
}

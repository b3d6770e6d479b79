package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBLogLevel        string
	DBSlowQuery       time.Duration

	Redis RedisConfig
	Guard GuardConfig
	Grant GrantConfig

	Processing ProcessingConfig
	Status     StatusConfig
}

// StatusConfig drives the periodic system status report.
type StatusConfig struct {
	Enabled  bool
	Interval time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GuardConfig selects the single-flight backend.
type GuardConfig struct {
	Backend   string
	Component string
	LockKey   string
	LockTTL   time.Duration
}

// GrantConfig controls the billing adjustment (OCC) collaborator.
type GrantConfig struct {
	Enabled   bool
	Mode      string
	Procedure string
	Username  string
}

// ProcessingConfig holds the env defaults for the worker pools. Values in
// dyndisc.yml override them at runtime, see TuningHolder.
type ProcessingConfig struct {
	MaxConcurrentPackages int
	MaxConcurrentChunks   int
	ContractsPerChunk     int
	PackageSize           int
	RetryMaxAttempts      int
	RetryInitialInterval  time.Duration
	RetryMultiplier       float64
}

const (
	GuardBackendDB    = "db"
	GuardBackendRedis = "redis"

	GrantModeProcedure = "procedure"
	GrantModeTable     = "table"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "dyndisc"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       int64(getenvInt("NODE_ID", 1)),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "dyndisc"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "dyndisc.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		DBLogLevel:        strings.ToLower(getenv("DATABASE_LOG_LEVEL", "warn")),
		DBSlowQuery:       getenvDuration("DATABASE_SLOW_QUERY_THRESHOLD", 500*time.Millisecond),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Guard: GuardConfig{
			Backend:   normalizeGuardBackend(getenv("GUARD_BACKEND", GuardBackendDB)),
			Component: getenv("GUARD_COMPONENT", "dyn_disc"),
			LockKey:   getenv("GUARD_LOCK_KEY", "dyndisc:process"),
			LockTTL:   getenvDuration("GUARD_LOCK_TTL", 12*time.Hour),
		},
		Grant: GrantConfig{
			Enabled:   getenvBool("GRANT_ENABLED", true),
			Mode:      normalizeGrantMode(getenv("GRANT_MODE", GrantModeProcedure)),
			Procedure: getenv("GRANT_PROCEDURE", "CALL billing.add_occ(?, ?, ?, ?, ?, ?, ?, ?, ?)"),
			Username:  getenv("GRANT_USERNAME", "DYN_DISC"),
		},
		Processing: ProcessingConfig{
			MaxConcurrentPackages: getenvInt("MAX_CONCURRENT_PACKAGES", 10),
			MaxConcurrentChunks:   getenvInt("MAX_CONCURRENT_CHUNKS", 10),
			ContractsPerChunk:     getenvInt("CONTRACTS_PER_CHUNK", 1000),
			PackageSize:           getenvInt("PACKAGE_SIZE", 5000),
			RetryMaxAttempts:      getenvInt("RETRY_MAX_ATTEMPTS", 5),
			RetryInitialInterval:  getenvDuration("RETRY_INITIAL_INTERVAL", 2*time.Second),
			RetryMultiplier:       getenvFloat("RETRY_MULTIPLIER", 2),
		},
		Status: StatusConfig{
			Enabled:  getenvBool("STATUS_SCHEDULER_ENABLED", true),
			Interval: getenvDuration("STATUS_SCHEDULER_INTERVAL", 30*time.Second),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func normalizeGuardBackend(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), GuardBackendRedis) {
		return GuardBackendRedis
	}
	return GuardBackendDB
}

func normalizeGrantMode(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), GrantModeTable) {
		return GrantModeTable
	}
	return GrantModeProcedure
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

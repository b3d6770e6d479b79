package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/amrherek/OJO-DynamicDiscount/internal/config"
)

// Config is the observability slice of the process configuration. Service
// identity comes from config.Config; log and OTLP knobs are read from the
// standard environment variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	NodeID      int64

	LogLevel    string
	LogFormat   string
	LogSampling bool

	Otel OtelConfig
}

type OtelConfig struct {
	Enabled       bool
	Endpoint      string
	Protocol      string
	SamplingRatio float64
}

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName: firstNonEmpty(cfg.AppName, "dyndisc"),
		Environment: firstNonEmpty(os.Getenv("DEPLOYMENT_ENV"), cfg.Environment),
		Version:     firstNonEmpty(os.Getenv("SERVICE_VERSION"), cfg.AppVersion),
		NodeID:      cfg.NodeID,
		LogLevel:    strings.ToLower(firstNonEmpty(os.Getenv("LOG_LEVEL"), "info")),
		LogFormat:   strings.ToLower(firstNonEmpty(os.Getenv("LOG_FORMAT"), "json")),
		// A run logs one line per failed contract; sampling would drop them.
		LogSampling: envBool("LOG_SAMPLING", false),
		Otel: OtelConfig{
			Enabled:  envBool("OTEL_ENABLED", false),
			Endpoint: firstNonEmpty(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), cfg.OTLPEndpoint),
			Protocol: strings.ToLower(firstNonEmpty(
				os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"),
				os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"),
				"grpc",
			)),
			SamplingRatio: envFloat("OTEL_SAMPLING_RATIO", 1),
		},
	}
	return out
}

// Debug reports whether verbose logging is wanted, either explicitly or
// because the process runs in a development environment.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return v
}

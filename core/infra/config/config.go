// Package config loads runtime configuration for the extpin daemon from the
// environment with sane defaults.
package config

import "os"

const (
	defaultRedisURL     = "redis://localhost:6379"
	defaultNATSURL      = "nats://localhost:4222"
	defaultSQLitePath   = "data/extpin.db"
	defaultExtRoot      = "extensions"
	defaultManifestPath = "config/promoted.yaml"
	defaultHTTPAddr     = ":8086"
	defaultMetricsAddr  = ":9096"

	envRedisURL     = "EXTPIN_REDIS_URL"
	envNATSURL      = "EXTPIN_NATS_URL"
	envSQLitePath   = "EXTPIN_SQLITE_PATH"
	envExtRoot      = "EXTPIN_EXTENSIONS_ROOT"
	envManifestPath = "EXTPIN_MANIFEST_PATH"
	envHTTPAddr     = "EXTPIN_HTTP_ADDR"
	envMetricsAddr  = "EXTPIN_METRICS_ADDR"
	envLoopbackURL  = "EXTPIN_LOOPBACK_URL"
	envAPIKey       = "EXTPIN_API_KEY"
	envDisableNATS  = "EXTPIN_DISABLE_NATS"
)

// Config holds runtime configuration for the extpin daemon.
type Config struct {
	RedisURL       string
	NatsURL        string
	SQLitePath     string
	ExtensionsRoot string
	ManifestPath   string
	HTTPAddr       string
	MetricsAddr    string
	// LoopbackURL is the base URL the deactivation trigger calls back to.
	// Defaults to the daemon's own HTTP listener on loopback.
	LoopbackURL string
	APIKey      string
	DisableNATS bool
}

// Load returns configuration using environment variables with sane defaults.
func Load() *Config {
	cfg := &Config{
		RedisURL:       getenv(envRedisURL, defaultRedisURL),
		NatsURL:        getenv(envNATSURL, defaultNATSURL),
		SQLitePath:     getenv(envSQLitePath, defaultSQLitePath),
		ExtensionsRoot: getenv(envExtRoot, defaultExtRoot),
		ManifestPath:   getenv(envManifestPath, defaultManifestPath),
		HTTPAddr:       getenv(envHTTPAddr, defaultHTTPAddr),
		MetricsAddr:    getenv(envMetricsAddr, defaultMetricsAddr),
		APIKey:         os.Getenv(envAPIKey),
		DisableNATS:    os.Getenv(envDisableNATS) == "true",
	}
	cfg.LoopbackURL = getenv(envLoopbackURL, "http://127.0.0.1"+cfg.HTTPAddr)
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

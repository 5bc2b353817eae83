// Package config handles environment-based configuration loading plus the
// optional stamon.yml override file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Port is the fixed HTTP listen port for the server binary.
const Port = 3000

// EnvConfig holds all environment-variable-driven settings (not hot-updatable).
type EnvConfig struct {
	// Directories
	DataPath   string // required; created if absent
	AssetsPath string // static UI assets; default "assets"

	// Auth
	JWTSecret []byte // required

	// Pipeline tuning
	ProbeWorkers     int
	ProbeRetries     int
	ProbeGrace       time.Duration
	QueueLease       time.Duration
	QueueBacklogMax  int
	BusBuffer        int
	TickTimeout      time.Duration
	ShutdownTimeout  time.Duration
	APIMaxBodyBytes  int
	IncidentCacheTTL time.Duration
}

// DatabasePath returns the SQLite file path under DataPath.
func (c *EnvConfig) DatabasePath() string {
	return c.DataPath + "/stamon.db"
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error listing every missing or invalid variable.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Directories ---
	cfg.DataPath = strings.TrimSpace(os.Getenv("DATA_PATH"))
	cfg.AssetsPath = envStr("ASSETS_PATH", "assets")

	// --- Auth ---
	secret, hasSecret := os.LookupEnv("JWT_SECRET")
	cfg.JWTSecret = []byte(secret)

	// --- Pipeline tuning ---
	cfg.ProbeWorkers = envInt("STAMON_PROBE_WORKERS", 2, &errs)
	cfg.ProbeRetries = envInt("STAMON_PROBE_RETRIES", 3, &errs)
	cfg.ProbeGrace = envDuration("STAMON_PROBE_GRACE", 2*time.Second, &errs)
	cfg.QueueLease = envDuration("STAMON_QUEUE_LEASE", 30*time.Second, &errs)
	cfg.QueueBacklogMax = envInt("STAMON_QUEUE_BACKLOG_MAX", 1000, &errs)
	cfg.BusBuffer = envInt("STAMON_BUS_BUFFER", 100, &errs)
	cfg.TickTimeout = envDuration("STAMON_TICK_TIMEOUT", 60*time.Second, &errs)
	cfg.ShutdownTimeout = envDuration("STAMON_SHUTDOWN_TIMEOUT", 10*time.Second, &errs)
	cfg.APIMaxBodyBytes = envInt("STAMON_API_MAX_BODY_BYTES", 1<<20, &errs)
	cfg.IncidentCacheTTL = envDuration("STAMON_INCIDENT_CACHE_TTL", 15*time.Second, &errs)

	// --- Validation ---
	if cfg.DataPath == "" {
		errs = append(errs, "DATA_PATH must be defined")
	}
	if !hasSecret || len(cfg.JWTSecret) == 0 {
		errs = append(errs, "JWT_SECRET must be defined and non-empty")
	}
	validatePositive("STAMON_PROBE_WORKERS", cfg.ProbeWorkers, &errs)
	validatePositive("STAMON_QUEUE_BACKLOG_MAX", cfg.QueueBacklogMax, &errs)
	validatePositive("STAMON_BUS_BUFFER", cfg.BusBuffer, &errs)
	validatePositive("STAMON_API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)
	if cfg.ProbeRetries < 0 {
		errs = append(errs, "STAMON_PROBE_RETRIES must not be negative")
	}
	if cfg.QueueLease <= 0 {
		errs = append(errs, "STAMON_QUEUE_LEASE must be positive")
	}
	if cfg.TickTimeout <= 0 {
		errs = append(errs, "STAMON_TICK_TIMEOUT must be positive")
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, "STAMON_SHUTDOWN_TIMEOUT must be positive")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be positive, got %d", name, value))
	}
}

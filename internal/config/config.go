// Package config loads the gateway's tunables from the environment. Every
// value that spec.md calls out as implementer-chosen (retry counts, breaker
// thresholds, cache TTLs) lives here as configuration rather than a constant,
// so it can be tuned per deployment without a rebuild.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the gateway's process-wide configuration, loaded once at startup
// and passed by reference into every component that needs it.
type Config struct {
	PrimaryURL  string
	FallbackURL string

	StoreConnectionString string

	RetryCount int
	Backoff    []time.Duration

	FOpen     int
	SClose    int
	TCooldown time.Duration

	CacheTTL     time.Duration
	LatencyLimit time.Duration
	ProbeTimeout time.Duration

	PaymentTimeout time.Duration

	GatewayPort   string
	ShutdownGrace time.Duration
}

// Load reads Config from the environment, applying spec.md's defaults for
// every optional tunable. PROCESSOR_DEFAULT_URL, PROCESSOR_FALLBACK_URL and
// STORE_CONNECTION_STRING are required; a missing one is a fatal startup
// error, returned here for the caller to report and exit on.
func Load() (Config, error) {
	cfg := Config{
		RetryCount:     2,
		Backoff:        []time.Duration{25 * time.Millisecond, 100 * time.Millisecond},
		FOpen:          5,
		SClose:         3,
		TCooldown:      5 * time.Second,
		CacheTTL:       5 * time.Second,
		LatencyLimit:   500 * time.Millisecond,
		ProbeTimeout:   500 * time.Millisecond,
		PaymentTimeout: 1000 * time.Millisecond,
		GatewayPort:    "8080",
		ShutdownGrace:  5 * time.Second,
	}

	cfg.PrimaryURL = os.Getenv("PROCESSOR_DEFAULT_URL")
	if cfg.PrimaryURL == "" {
		return Config{}, fmt.Errorf("config: PROCESSOR_DEFAULT_URL is required")
	}
	cfg.FallbackURL = os.Getenv("PROCESSOR_FALLBACK_URL")
	if cfg.FallbackURL == "" {
		return Config{}, fmt.Errorf("config: PROCESSOR_FALLBACK_URL is required")
	}
	cfg.StoreConnectionString = os.Getenv("STORE_CONNECTION_STRING")
	if cfg.StoreConnectionString == "" {
		return Config{}, fmt.Errorf("config: STORE_CONNECTION_STRING is required")
	}

	if v, ok := envInt("RETRY_COUNT"); ok {
		cfg.RetryCount = v
	}
	if v, ok := envInt("F_OPEN"); ok {
		cfg.FOpen = v
	}
	if v, ok := envInt("S_CLOSE"); ok {
		cfg.SClose = v
	}
	if v, ok := envDuration("T_COOLDOWN"); ok {
		cfg.TCooldown = v
	}
	if v, ok := envDuration("CACHE_TTL"); ok {
		cfg.CacheTTL = v
	}
	if v, ok := envDuration("L_LAT"); ok {
		cfg.LatencyLimit = v
	}
	if v, ok := envDuration("PROBE_TIMEOUT"); ok {
		cfg.ProbeTimeout = v
	}
	if v, ok := envDuration("PAYMENT_TIMEOUT"); ok {
		cfg.PaymentTimeout = v
	}
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		cfg.GatewayPort = v
	}
	if v, ok := envDuration("SHUTDOWN_GRACE"); ok {
		cfg.ShutdownGrace = v
	}

	return cfg, nil
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envDuration(name string) (time.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

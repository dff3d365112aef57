package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Drive-risk backend. An empty base URL runs the service degraded:
	// selections still work but no risk request is ever issued.
	RiskAPIBaseURL string
	RiskAPITimeout time.Duration

	// TravelLocation is the zone travel moments are wall-clock times in.
	TravelLocation *time.Location

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Assessment publishing. No brokers disables the publisher.
	KafkaBrokers         []string
	KafkaAssessmentTopic string

	AllowedOrigins []string
}

// RiskAPIEnabled reports whether a drive-risk backend is configured.
func (c *Config) RiskAPIEnabled() bool { return c.RiskAPIBaseURL != "" }

// KafkaEnabled reports whether accepted assessments are published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	riskBaseURL, err := parseBaseURL(os.Getenv("RISK_API_BASE_URL"))
	if err != nil {
		return nil, err
	}

	riskTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("RISK_API_TIMEOUT", "30s"))
	if err != nil || riskTimeout < 0 {
		return nil, errors.New("invalid RISK_API_TIMEOUT")
	}

	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("TRAVEL_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRAVEL_TIMEZONE: %w", err)
	}

	mapboxTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s"))
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	mapboxCacheSize := parseMapboxCacheSize()

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RiskAPIBaseURL: riskBaseURL,
		RiskAPITimeout: riskTimeout,
		TravelLocation: loc,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: mapboxCacheSize,

		KafkaBrokers:         brokers,
		KafkaAssessmentTopic: sharedcfg.EnvOrDefault("KAFKA_ASSESSMENT_TOPIC", "drive-risk-assessments"),

		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
	}

	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// parseBaseURL accepts an empty value or an absolute http(s) URL and strips
// any trailing slash so paths can be appended.
func parseBaseURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid RISK_API_BASE_URL %q", s)
	}
	return strings.TrimRight(s, "/"), nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

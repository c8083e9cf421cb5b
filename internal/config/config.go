package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// WeatherAPIKey authenticates against the weather API.
	WeatherAPIKey string `json:"weather_api_key,omitempty"`

	// PexelsAPIKey authenticates against the Pexels photo search API.
	PexelsAPIKey string `json:"pexels_api_key,omitempty"`

	// FreshnessTTLSeconds is the maximum age of a weather record before a
	// refetch is required. A record exactly at the TTL edge is still fresh.
	FreshnessTTLSeconds int `json:"freshness_ttl_seconds,omitempty"`

	// ImageCacheCap is the maximum number of cached background images kept
	// after a fresh download, least-recently-accessed removed first.
	ImageCacheCap int `json:"image_cache_cap,omitempty"`

	// ImageMaxAgeDays is the age threshold for the expiry sweep.
	ImageMaxAgeDays int `json:"image_max_age_days,omitempty"`

	// HTTPTimeoutSeconds bounds every outbound HTTP call.
	HTTPTimeoutSeconds int `json:"http_timeout_seconds,omitempty"`

	// SweepIntervalMinutes is how often the janitor runs cache maintenance.
	// 0 disables the scheduled sweep.
	SweepIntervalMinutes int `json:"sweep_interval_minutes,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		FreshnessTTLSeconds:  600,
		ImageCacheCap:        5,
		ImageMaxAgeDays:      7,
		HTTPTimeoutSeconds:   10,
		SweepIntervalMinutes: 360,
	}
}

// Load loads configuration from baseDir/config.json, then applies
// environment overrides. A .env file in the working directory is loaded
// first if present. Returns defaults if the config file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.skycast.
func Load(baseDir string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs. Overlay values win if non-zero.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.WeatherAPIKey = overlay.WeatherAPIKey
	if result.WeatherAPIKey == "" {
		result.WeatherAPIKey = base.WeatherAPIKey
	}

	result.PexelsAPIKey = overlay.PexelsAPIKey
	if result.PexelsAPIKey == "" {
		result.PexelsAPIKey = base.PexelsAPIKey
	}

	result.FreshnessTTLSeconds = overlay.FreshnessTTLSeconds
	if result.FreshnessTTLSeconds == 0 {
		result.FreshnessTTLSeconds = base.FreshnessTTLSeconds
	}

	result.ImageCacheCap = overlay.ImageCacheCap
	if result.ImageCacheCap == 0 {
		result.ImageCacheCap = base.ImageCacheCap
	}

	result.ImageMaxAgeDays = overlay.ImageMaxAgeDays
	if result.ImageMaxAgeDays == 0 {
		result.ImageMaxAgeDays = base.ImageMaxAgeDays
	}

	result.HTTPTimeoutSeconds = overlay.HTTPTimeoutSeconds
	if result.HTTPTimeoutSeconds == 0 {
		result.HTTPTimeoutSeconds = base.HTTPTimeoutSeconds
	}

	result.SweepIntervalMinutes = overlay.SweepIntervalMinutes
	if result.SweepIntervalMinutes == 0 {
		result.SweepIntervalMinutes = base.SweepIntervalMinutes
	}

	return result
}

// applyEnv overrides config values from environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SKYCAST_WEATHER_API_KEY"); v != "" {
		cfg.WeatherAPIKey = v
	}
	if v := os.Getenv("SKYCAST_PEXELS_API_KEY"); v != "" {
		cfg.PexelsAPIKey = v
	}
	if v := getenvInt("SKYCAST_FRESHNESS_TTL_SECONDS"); v > 0 {
		cfg.FreshnessTTLSeconds = v
	}
	if v := getenvInt("SKYCAST_IMAGE_CACHE_CAP"); v > 0 {
		cfg.ImageCacheCap = v
	}
	if v := getenvInt("SKYCAST_IMAGE_MAX_AGE_DAYS"); v > 0 {
		cfg.ImageMaxAgeDays = v
	}
	if v := getenvInt("SKYCAST_HTTP_TIMEOUT_SECONDS"); v > 0 {
		cfg.HTTPTimeoutSeconds = v
	}
	if v := getenvInt("SKYCAST_SWEEP_INTERVAL_MINUTES"); v > 0 {
		cfg.SweepIntervalMinutes = v
	}
}

func getenvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

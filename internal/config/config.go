/*
Package config loads runtime settings for the service. Values come from an
optional YAML file, then from the environment (a .env file is autoloaded),
with the environment taking precedence.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when SYMPTOSCAN_CONFIG is not set.
const DefaultPath = "config.yaml"

const (
	DispatchSequential = "sequential"
	DispatchConcurrent = "concurrent"

	LocationReported = "reported"
	LocationIP       = "ip"
	LocationStatic   = "static"
	LocationNone     = "none"
)

// Config represents the full set of service settings.
type Config struct {
	Port     int    `yaml:"port"`
	AppEnv   string `yaml:"appEnv"`
	LogLevel string `yaml:"logLevel"`

	// Gemini. An empty key is allowed; calls then fail with an auth error.
	GeminiAPIKey         string `yaml:"geminiAPIKey"`
	GeminiModel          string `yaml:"geminiModel"`
	GeminiBaseURL        string `yaml:"geminiBaseURL"`
	GeminiTimeoutSeconds int    `yaml:"geminiTimeoutSeconds"`
	DispatchMode         string `yaml:"dispatchMode"`

	// Location
	LocationProvider string   `yaml:"locationProvider"`
	IPLookupURL      string   `yaml:"ipLookupURL"`
	StaticLatitude   *float64 `yaml:"staticLatitude"`
	StaticLongitude  *float64 `yaml:"staticLongitude"`

	// Screens
	SessionSecret    string `yaml:"sessionSecret"`
	ScreenTTLMinutes int    `yaml:"screenTTLMinutes"`
	MaxScreens       int    `yaml:"maxScreens"`

	// Submission rate limit per client IP
	RateLimitMax           int `yaml:"rateLimitMax"`
	RateLimitWindowMinutes int `yaml:"rateLimitWindowMinutes"`
}

// Defaults returns the settings used when nothing else is configured.
func Defaults() Config {
	return Config{
		Port:                   8080,
		AppEnv:                 "development",
		LogLevel:               "info",
		GeminiModel:            "gemini-1.5-flash",
		GeminiBaseURL:          "https://generativelanguage.googleapis.com/v1beta",
		GeminiTimeoutSeconds:   30,
		DispatchMode:           DispatchSequential,
		LocationProvider:       LocationReported,
		IPLookupURL:            "http://ip-api.com/json",
		ScreenTTLMinutes:       30,
		MaxScreens:             1000,
		RateLimitMax:           10,
		RateLimitWindowMinutes: 15,
	}
}

// Load reads the YAML file at path (DefaultPath when empty), applies
// environment overrides and validates the result. A missing file is not an
// error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		path = os.Getenv("SYMPTOSCAN_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GeminiTimeout is the per-request timeout of the Gemini client.
func (c Config) GeminiTimeout() time.Duration {
	return time.Duration(c.GeminiTimeoutSeconds) * time.Second
}

// ScreenTTL is how long an untouched screen stays alive.
func (c Config) ScreenTTL() time.Duration {
	return time.Duration(c.ScreenTTLMinutes) * time.Minute
}

// RateLimitWindow is the sliding window for submission rate limiting.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMinutes) * time.Minute
}

// IsProduction reports whether APP_ENV is "production".
func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}
	setFloat := func(key string, dst **float64) error {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: %s must be a number: %w", key, err)
		}
		*dst = &f
		return nil
	}

	setString("APP_ENV", &cfg.AppEnv)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("GEMINI_API_KEY", &cfg.GeminiAPIKey)
	setString("GEMINI_MODEL", &cfg.GeminiModel)
	setString("GEMINI_BASE_URL", &cfg.GeminiBaseURL)
	setString("DISPATCH_MODE", &cfg.DispatchMode)
	setString("LOCATION_PROVIDER", &cfg.LocationProvider)
	setString("IP_LOOKUP_URL", &cfg.IPLookupURL)
	setString("SESSION_SECRET", &cfg.SessionSecret)

	for key, dst := range map[string]*int{
		"PORT":                      &cfg.Port,
		"GEMINI_TIMEOUT_SECONDS":    &cfg.GeminiTimeoutSeconds,
		"SCREEN_TTL_MINUTES":        &cfg.ScreenTTLMinutes,
		"MAX_SCREENS":               &cfg.MaxScreens,
		"RATE_LIMIT_MAX":            &cfg.RateLimitMax,
		"RATE_LIMIT_WINDOW_MINUTES": &cfg.RateLimitWindowMinutes,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}

	if err := setFloat("STATIC_LATITUDE", &cfg.StaticLatitude); err != nil {
		return err
	}
	return setFloat("STATIC_LONGITUDE", &cfg.StaticLongitude)
}

func validateConfig(cfg Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", cfg.Port)
	}
	if strings.TrimSpace(cfg.GeminiModel) == "" {
		return errors.New("config: geminiModel is required (set in config.yaml or GEMINI_MODEL)")
	}
	if cfg.GeminiTimeoutSeconds <= 0 {
		return errors.New("config: geminiTimeoutSeconds must be positive")
	}
	switch cfg.DispatchMode {
	case DispatchSequential, DispatchConcurrent:
	default:
		return fmt.Errorf("config: unknown dispatchMode %q", cfg.DispatchMode)
	}
	switch cfg.LocationProvider {
	case LocationReported, LocationIP, LocationNone:
	case LocationStatic:
		if cfg.StaticLatitude == nil || cfg.StaticLongitude == nil {
			return errors.New("config: static location provider needs staticLatitude and staticLongitude")
		}
		if *cfg.StaticLatitude < -90 || *cfg.StaticLatitude > 90 || *cfg.StaticLongitude < -180 || *cfg.StaticLongitude > 180 {
			return errors.New("config: static coordinate out of range")
		}
	default:
		return fmt.Errorf("config: unknown locationProvider %q", cfg.LocationProvider)
	}
	if cfg.LocationProvider == LocationIP && strings.TrimSpace(cfg.IPLookupURL) == "" {
		return errors.New("config: ipLookupURL is required for the ip location provider")
	}
	if cfg.ScreenTTLMinutes <= 0 || cfg.MaxScreens <= 0 {
		return errors.New("config: screenTTLMinutes and maxScreens must be positive")
	}
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindowMinutes <= 0 {
		return errors.New("config: rateLimitMax and rateLimitWindowMinutes must be positive")
	}
	if cfg.IsProduction() && cfg.SessionSecret == "" {
		return errors.New("config: sessionSecret is required in production (SESSION_SECRET)")
	}
	return nil
}

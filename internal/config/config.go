package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultGeocoderURL = "https://geocoding-api.open-meteo.com/v1"
	defaultNWSURL      = "https://api.weather.gov"
	defaultUserAgent   = "station-conditions-service (ops@example.com)"
)

// Config holds service configuration loaded from YAML, .env and environment.
type Config struct {
	ServerPort string `validate:"required,numeric"`

	GeocoderURL     string        `validate:"required,url"`
	WeatherAPIURL   string        `validate:"required,url"`
	UserAgent       string        `validate:"required"`
	UpstreamTimeout time.Duration `validate:"gt=0"`
	RequestTimeout  time.Duration `validate:"gt=0"`

	StationLimit int `validate:"min=1,max=25"`
	RecentLimit  int `validate:"min=1,max=50"`

	RateLimitRPS   int `validate:"gt=0"`
	RateLimitBurst int `validate:"gt=0"`

	BreakerEnabled          bool
	BreakerFailureThreshold int           `validate:"min=1"`
	BreakerTimeout          time.Duration `validate:"gt=0"`
	BreakerHalfOpenRequests int           `validate:"min=1"`

	ShutdownTimeout time.Duration `validate:"gt=0"`

	OverloadWindow         time.Duration `validate:"gt=0"`
	OverloadThresholdPct   int           `validate:"min=1,max=100"`
	IdleThresholdReqPerMin int           `validate:"min=0"`
	IdleWindow             time.Duration
	MinimumLifespan        time.Duration
	DegradedWindow         time.Duration
	DegradedErrorPct       int `validate:"min=1,max=100"`

	TrackedLocations []string `validate:"dive,required"`

	ProbeEnabled  bool
	ProbeSchedule string `validate:"required_if=ProbeEnabled true"`
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Geocoder struct {
		URL string `yaml:"url"`
	} `yaml:"geocoder"`

	WeatherAPI struct {
		URL       string `yaml:"url"`
		UserAgent string `yaml:"user_agent"`
	} `yaml:"weather_api"`

	Upstream struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"upstream"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Stations struct {
		Limit       int `yaml:"limit"`
		RecentLimit int `yaml:"recent_limit"`
	} `yaml:"stations"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	CircuitBreaker struct {
		Enabled          *bool  `yaml:"enabled"`
		FailureThreshold int    `yaml:"failure_threshold"`
		Timeout          string `yaml:"timeout"`
		HalfOpenRequests int    `yaml:"half_open_requests"`
	} `yaml:"circuit_breaker"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow         string `yaml:"overload_window"`
		OverloadThresholdPct   int    `yaml:"overload_threshold_pct"`
		IdleThresholdReqPerMin int    `yaml:"idle_threshold_req_per_min"`
		IdleWindow             string `yaml:"idle_window"`
		MinimumLifespan        string `yaml:"minimum_lifespan"`
		DegradedWindow         string `yaml:"degraded_window"`
		DegradedErrorPct       int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Metrics struct {
		TrackedLocations []string `yaml:"tracked_locations"`
	} `yaml:"metrics"`

	Probe struct {
		Enabled  bool   `yaml:"enabled"`
		Schedule string `yaml:"schedule"`
	} `yaml:"probe"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev). A .env file in the
// working directory, if present, is loaded into the environment first; variables already
// set win. GEOCODER_URL, NWS_API_URL, NWS_USER_AGENT and PORT override the file.
// Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := fromFile(fc)
	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fromFile fills defaults for everything the file leaves out.
func fromFile(fc fileConfig) *Config {
	cfg := &Config{
		ServerPort:    firstNonEmpty(fc.Server.Port, "8080"),
		GeocoderURL:   firstNonEmpty(fc.Geocoder.URL, defaultGeocoderURL),
		WeatherAPIURL: firstNonEmpty(fc.WeatherAPI.URL, defaultNWSURL),
		UserAgent:     firstNonEmpty(fc.WeatherAPI.UserAgent, defaultUserAgent),

		UpstreamTimeout: parseDuration(fc.Upstream.Timeout, 3*time.Second),
		RequestTimeout:  parseDuration(fc.Request.Timeout, 20*time.Second),

		StationLimit: positiveOr(fc.Stations.Limit, 8),
		RecentLimit:  positiveOr(fc.Stations.RecentLimit, 8),

		RateLimitRPS:   positiveOr(fc.Reliability.RateLimitRPS, 100),
		RateLimitBurst: positiveOr(fc.Reliability.RateLimitBurst, 250),

		BreakerEnabled:          true,
		BreakerFailureThreshold: positiveOr(fc.CircuitBreaker.FailureThreshold, 5),
		BreakerTimeout:          parseDuration(fc.CircuitBreaker.Timeout, 30*time.Second),
		BreakerHalfOpenRequests: positiveOr(fc.CircuitBreaker.HalfOpenRequests, 1),

		ShutdownTimeout: parseDuration(fc.Shutdown.Timeout, 30*time.Second),

		OverloadWindow:         parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second),
		OverloadThresholdPct:   positiveOr(fc.Lifecycle.OverloadThresholdPct, 80),
		IdleThresholdReqPerMin: positiveOr(fc.Lifecycle.IdleThresholdReqPerMin, 5),
		IdleWindow:             parseDuration(fc.Lifecycle.IdleWindow, 5*time.Minute),
		MinimumLifespan:        parseDuration(fc.Lifecycle.MinimumLifespan, 5*time.Minute),
		DegradedWindow:         parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second),
		DegradedErrorPct:       positiveOr(fc.Lifecycle.DegradedErrorPct, 5),

		TrackedLocations: fc.Metrics.TrackedLocations,

		ProbeEnabled:  fc.Probe.Enabled,
		ProbeSchedule: strings.TrimSpace(fc.Probe.Schedule),
	}
	if fc.CircuitBreaker.Enabled != nil {
		cfg.BreakerEnabled = *fc.CircuitBreaker.Enabled
	}
	if cfg.ProbeEnabled && cfg.ProbeSchedule == "" {
		cfg.ProbeSchedule = "@every 5m"
	}
	return cfg
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.ServerPort = v
	}
	if v := strings.TrimSpace(os.Getenv("GEOCODER_URL")); v != "" {
		cfg.GeocoderURL = v
	}
	if v := strings.TrimSpace(os.Getenv("NWS_API_URL")); v != "" {
		cfg.WeatherAPIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("NWS_USER_AGENT")); v != "" {
		cfg.UserAgent = v
	}
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func positiveOr(v, defaultVal int) int {
	if v <= 0 {
		return defaultVal
	}
	return v
}

func firstNonEmpty(v, defaultVal string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return defaultVal
}

var structValidator = validator.New()

// validate checks struct tags and cross-field rules. RequestTimeout is raised to
// cover at least one upstream call rather than rejected.
func validate(cfg *Config) error {
	if cfg.RequestTimeout <= cfg.UpstreamTimeout {
		cfg.RequestTimeout = cfg.UpstreamTimeout + time.Second
	}
	if err := structValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config %s: failed %q rule (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// Package config loads the healthline process configuration from the
// environment. Every setting has a default; malformed values and
// out-of-range settings are reported together by Load.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/healthline/internal/sysutil"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string // CORS_ALLOWED_ORIGINS, empty allows any origin
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RxNormConfig configures the medication name lookup service.
type RxNormConfig struct {
	BaseURL  string        // RXNORM_BASE_URL
	Timeout  time.Duration // RXNORM_TIMEOUT
	CacheTTL time.Duration // RXNORM_CACHE_TTL, freshness of cached suggestions
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// Store / clock
	DBPath            string // HEALTHLINE_DB, falls back to DB_PATH
	TimeOffsetMinutes int    // shifts the logical clock; fixed for the process

	RxNorm RxNormConfig

	DebugRoles bool // honour X-Role / ?role= from clients

	// Rate limiting
	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return net.JoinHostPort("", c.Port) }

// MarshalZerologObject logs the effective settings. Nothing in Config is
// secret, but CORS origins are summarized to keep the line short.
func (c Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("addr", c.Addr()).
		Str("gin_mode", c.GinMode).
		Str("log_level", c.LogLevel).
		Str("api_base_path", c.APIBasePath).
		Bool("swagger", c.SwaggerEnabled).
		Str("db", c.DBPath).
		Int("time_offset_minutes", c.TimeOffsetMinutes).
		Str("rxnorm", c.RxNorm.BaseURL).
		Bool("debug_roles", c.DebugRoles).
		Float64("rate_rps", c.RateRPS).
		Int("rate_burst", c.RateBurst).
		Int("cors_origins", len(c.CORS.AllowedOrigins)).
		Bool("otel", c.OTEL.Enabled)
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, applies defaults and validates the result.
// The returned error joins every problem found.
func Load() (Config, error) {
	var env envReader
	cfg := Config{
		Port:              env.str("PORT", "8080"),
		ReadTimeout:       env.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: env.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      env.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       env.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    env.int("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(env.str("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(env.str("LOG_LEVEL", "info")),
		LogPretty:      env.bool("LOG_PRETTY", false),
		SwaggerEnabled: env.bool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(env.str("API_BASE_PATH", "/api/v1")),

		DBPath:            env.str("HEALTHLINE_DB", env.str("DB_PATH", "healthline.db")),
		TimeOffsetMinutes: env.int("HEALTHLINE_TIME_OFFSET_MINUTES", 0),

		RxNorm: RxNormConfig{
			BaseURL:  strings.TrimRight(env.str("RXNORM_BASE_URL", "https://rxnav.nlm.nih.gov/REST"), "/"),
			Timeout:  env.dur("RXNORM_TIMEOUT", 3*time.Second),
			CacheTTL: env.dur("RXNORM_CACHE_TTL", 7*24*time.Hour),
		},

		DebugRoles: env.bool("DEBUG_ROLES", false),

		RateRPS:   env.float("RATE_RPS", 5.0),
		RateBurst: env.int("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: splitCSV(env.str("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: env.bool("ENABLE_HSTS", false),
			HSTSMaxAge: env.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: env.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     env.bool("OTEL_ENABLED", false),
			Endpoint:    env.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    env.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: env.str("OTEL_SERVICE_NAME", "healthline"),
			SampleRatio: env.float("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	return cfg, errors.Join(append(env.errs, cfg.validate()...)...)
}

func (c Config) validate() []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		check(false, "LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	check(c.APIBasePath != "/", "API_BASE_PATH must not be the root path, the caregiver pages are served there")
	check(strings.TrimSpace(c.DBPath) != "", "HEALTHLINE_DB must not be empty")
	check(c.RxNorm.BaseURL != "", "RXNORM_BASE_URL must not be empty")
	check(c.RxNorm.Timeout > 0, "RXNORM_TIMEOUT must be > 0")
	check(c.RxNorm.CacheTTL > 0, "RXNORM_CACHE_TTL must be > 0")
	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errs
}

// envReader reads typed variables. Unset or empty variables take the
// default; malformed ones take the default and record an error.
type envReader struct {
	errs []error
}

func (r *envReader) lookup(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (r *envReader) bad(k, v, kind string) {
	r.errs = append(r.errs, fmt.Errorf("%s: %q is not a valid %s", k, v, kind))
}

func (r *envReader) str(k, def string) string {
	if v, ok := r.lookup(k); ok {
		return v
	}
	return def
}

func (r *envReader) int(k string, def int) int {
	v, ok := r.lookup(k)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.bad(k, v, "integer")
		return def
	}
	return i
}

func (r *envReader) float(k string, def float64) float64 {
	v, ok := r.lookup(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		r.bad(k, v, "number")
		return def
	}
	return f
}

func (r *envReader) bool(k string, def bool) bool {
	v, ok := r.lookup(k)
	if !ok {
		return def
	}
	if sysutil.IsTruthy(v) {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "no", "n", "off":
		return false
	}
	r.bad(k, v, "boolean")
	return def
}

func (r *envReader) dur(k string, def time.Duration) time.Duration {
	v, ok := r.lookup(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		r.bad(k, v, "duration")
		return def
	}
	return d
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures a leading '/' and strips trailing ones.
// An empty path becomes "/".
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}

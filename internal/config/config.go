// Package config loads the service configuration from the environment and,
// optionally, a YAML/JSON/TOML file named by CONFIG_FILE. Environment
// variables win over file values; file keys are the lowercase variable
// names (PORT becomes port, JWT_SECRET becomes jwt_secret).
//
// Values that fail to parse fall back to their defaults. Load then
// validates the result as a whole.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/tbourn/go-review-catalog/internal/sysutil"
)

// CORSConfig lists the origins allowed to call the API from a browser.
// Empty means any origin.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls the Strict-Transport-Security header.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig configures trace export.
type OTELConfig struct {
	Enabled     bool
	Endpoint    string // host:port of the OTLP gRPC collector
	Insecure    bool
	ServiceName string
	SampleRatio float64 // 0..1
}

// AuthConfig configures token signing.
type AuthConfig struct {
	JWTSecret  string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// MailConfig configures confirmation code delivery. With an empty SMTPHost
// codes are written to the log instead of being mailed.
type MailConfig struct {
	From         string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

// RedisConfig enables the shared rate limiter when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config is the full service configuration.
type Config struct {
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string

	LogLevel       string
	LogPretty      bool
	SwaggerEnabled bool
	GzipEnabled    bool
	APIBasePath    string

	DBPath string

	Auth AuthConfig
	Mail MailConfig

	RateRPS   float64
	RateBurst int
	Redis     RedisConfig

	CORS     CORSConfig
	Security SecurityConfig

	// IdempotencyTTL bounds how long an Idempotency-Key replays its result.
	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

// MustLoad is Load for callers that cannot continue without a config.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the file named by CONFIG_FILE, if any, and the environment.
func Load() (Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit config file. An empty path reads the
// environment only.
func LoadFile(path string) (Config, error) {
	src, err := newSource(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:              src.str("port", "8080"),
		ReadTimeout:       src.dur("read_timeout", 15*time.Second),
		ReadHeaderTimeout: src.dur("read_header_timeout", 10*time.Second),
		WriteTimeout:      src.dur("write_timeout", 20*time.Second),
		IdleTimeout:       src.dur("idle_timeout", time.Minute),
		MaxHeaderBytes:    src.integer("max_header_bytes", 1<<20),
		GinMode:           strings.ToLower(src.str("gin_mode", "release")),

		LogLevel:       strings.ToLower(src.str("log_level", "info")),
		LogPretty:      src.boolean("log_pretty", false),
		SwaggerEnabled: src.boolean("swagger_enabled", false),
		GzipEnabled:    src.boolean("gzip_enabled", false),
		APIBasePath:    normalizeBasePath(src.str("api_base_path", "/api/v1")),

		DBPath: src.str("db_path", "catalog.db"),

		Auth: AuthConfig{
			JWTSecret:  src.str("jwt_secret", ""),
			Issuer:     src.str("jwt_issuer", "go-review-catalog"),
			AccessTTL:  src.dur("access_token_ttl", 24*time.Hour),
			RefreshTTL: src.dur("refresh_token_ttl", 30*24*time.Hour),
		},
		Mail: MailConfig{
			From:         src.str("mail_from", "no-reply@catalog.local"),
			SMTPHost:     src.str("smtp_host", ""),
			SMTPPort:     src.integer("smtp_port", 25),
			SMTPUsername: src.str("smtp_username", ""),
			SMTPPassword: src.str("smtp_password", ""),
		},

		RateRPS:   src.float("rate_rps", 5),
		RateBurst: src.integer("rate_burst", 10),
		Redis: RedisConfig{
			Addr:     src.str("redis_addr", ""),
			Password: src.str("redis_password", ""),
			DB:       src.integer("redis_db", 0),
		},

		CORS: CORSConfig{AllowedOrigins: src.list("cors_allowed_origins")},
		Security: SecurityConfig{
			EnableHSTS: src.boolean("enable_hsts", false),
			HSTSMaxAge: src.dur("hsts_max_age", 180*24*time.Hour),
		},

		IdempotencyTTL: src.dur("idempotency_ttl", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     src.boolean("otel_enabled", false),
			Endpoint:    src.str("otel_exporter_otlp_endpoint", "localhost:4317"),
			Insecure:    src.boolean("otel_exporter_otlp_insecure", true),
			ServiceName: src.str("otel_service_name", "go-review-catalog"),
			SampleRatio: src.float("otel_traces_sampler_arg", 1),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	if cfg.GinMode != "debug" && cfg.GinMode != "test" {
		cfg.GinMode = "release"
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	checks := []struct {
		bad bool
		msg string
	}{
		{!validLogLevel(c.LogLevel), "LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"},
		{strings.TrimSpace(c.Port) == "", "PORT must not be empty"},
		{c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0,
			"timeouts must be positive durations"},
		{c.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0"},
		{strings.TrimSpace(c.DBPath) == "", "DB_PATH must not be empty"},
		{len(c.Auth.JWTSecret) < 16, "JWT_SECRET must be at least 16 characters"},
		{c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL < c.Auth.AccessTTL,
			"ACCESS_TOKEN_TTL must be > 0 and not exceed REFRESH_TOKEN_TTL"},
		{strings.TrimSpace(c.Mail.From) == "", "MAIL_FROM must not be empty"},
		{c.Mail.SMTPPort <= 0 || c.Mail.SMTPPort > 65535, "SMTP_PORT must be a valid port"},
		{c.RateRPS < 0, "RATE_RPS must be >= 0"},
		{c.RateBurst < 1, "RATE_BURST must be >= 1"},
		{c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0"},
		{c.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0"},
		{c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]"},
	}
	for _, chk := range checks {
		if chk.bad {
			return errors.New(chk.msg)
		}
	}
	return nil
}

func validLogLevel(l string) bool {
	switch l {
	case "debug", "info", "warn", "error", "fatal", "panic":
		return true
	}
	return false
}

// source resolves keys from the environment first, then the config file.
type source struct {
	v *viper.Viper
}

func newSource(path string) (*source, error) {
	v := viper.New()
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	return &source{v: v}, nil
}

// raw returns the value for key; empty strings count as unset.
func (s *source) raw(key string) (any, bool) {
	val := s.v.Get(key)
	if val == nil {
		return nil, false
	}
	if str, ok := val.(string); ok && str == "" {
		return nil, false
	}
	return val, true
}

func (s *source) str(key, def string) string {
	val, ok := s.raw(key)
	if !ok {
		return def
	}
	return cast.ToString(val)
}

func (s *source) integer(key string, def int) int {
	val, ok := s.raw(key)
	if !ok {
		return def
	}
	if n, err := cast.ToIntE(val); err == nil {
		return n
	}
	return def
}

func (s *source) float(key string, def float64) float64 {
	val, ok := s.raw(key)
	if !ok {
		return def
	}
	if f, err := cast.ToFloat64E(val); err == nil {
		return f
	}
	return def
}

func (s *source) dur(key string, def time.Duration) time.Duration {
	val, ok := s.raw(key)
	if !ok {
		return def
	}
	if str, isStr := val.(string); isStr {
		// Bare numbers are not durations here.
		if d, err := time.ParseDuration(strings.TrimSpace(str)); err == nil {
			return d
		}
		return def
	}
	if d, err := cast.ToDurationE(val); err == nil {
		return d
	}
	return def
}

// boolean accepts yes/no and on/off as well as the strconv spellings.
func (s *source) boolean(key string, def bool) bool {
	val, ok := s.raw(key)
	if !ok {
		return def
	}
	str, isStr := val.(string)
	if !isStr {
		if b, err := cast.ToBoolE(val); err == nil {
			return b
		}
		return def
	}
	if b, known := sysutil.ParseBool(str); known {
		return b
	}
	return def
}

// list reads a comma separated string or a file list, dropping blanks.
func (s *source) list(key string) []string {
	val, ok := s.raw(key)
	if !ok {
		return nil
	}
	var items []string
	if str, isStr := val.(string); isStr {
		items = strings.Split(str, ",")
	} else {
		items = cast.ToStringSlice(val)
	}
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// normalizeBasePath returns p with a leading slash and no trailing one.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}

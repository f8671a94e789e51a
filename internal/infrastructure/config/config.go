package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Env       string `envconfig:"ENV" default:"development" yaml:"env"`
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000" yaml:"port"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" yaml:"shutdown_timeout"`
}

// UpstreamConfig describes the repository API being proxied.
type UpstreamConfig struct {
	BaseURL string        `envconfig:"UPSTREAM_BASE" default:"http://localhost:8080/server/api" yaml:"base_url"`
	Timeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"8s" yaml:"timeout"`
	// BreakerFailures is the number of consecutive transport failures that
	// opens the circuit.
	BreakerFailures uint32        `envconfig:"UPSTREAM_BREAKER_FAILURES" default:"5" yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `envconfig:"UPSTREAM_BREAKER_TIMEOUT" default:"30s" yaml:"breaker_timeout"`
}

// GatewayConfig holds the proxy rewrite rules.
type GatewayConfig struct {
	Prefix            string   `envconfig:"GATEWAY_PREFIX" default:"/proxy" yaml:"prefix"`
	UpstreamRootPath  string   `envconfig:"GATEWAY_UPSTREAM_ROOT_PATH" default:"/server" yaml:"upstream_root_path"`
	UpstreamAPIPath   string   `envconfig:"GATEWAY_UPSTREAM_API_PATH" default:"/server/api" yaml:"upstream_api_path"`
	AllowedCookies    []string `envconfig:"GATEWAY_ALLOWED_COOKIES" default:"JSESSIONID,DSPACE-XSRF-COOKIE,XSRF-TOKEN,*XSRF*" yaml:"allowed_cookies"`
	HTTPOnlyCookies   []string `envconfig:"GATEWAY_HTTPONLY_COOKIES" default:"JSESSIONID,*SESSION*,*XSRF*" yaml:"httponly_cookies"`
	CoerceNoContent   bool     `envconfig:"GATEWAY_COERCE_NO_CONTENT" default:"true" yaml:"coerce_no_content"`
	MaxRequestBodyMiB int64    `envconfig:"GATEWAY_MAX_BODY_MIB" default:"64" yaml:"max_request_body_mib"`
}

// SessionConfig tunes the session bridge used by the CLI.
type SessionConfig struct {
	GatewayURL   string        `envconfig:"SESSION_GATEWAY_URL" default:"http://localhost:8000/proxy" yaml:"gateway_url"`
	Timeout      time.Duration `envconfig:"SESSION_TIMEOUT" default:"8s" yaml:"timeout"`
	SettleDelay  time.Duration `envconfig:"SESSION_SETTLE_DELAY" default:"300ms" yaml:"settle_delay"`
	ConfirmDelay time.Duration `envconfig:"SESSION_CONFIRM_DELAY" default:"1s" yaml:"confirm_delay"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
	File        string `envconfig:"LOG_FILE" yaml:"file"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// CORSConfig holds the browser origins allowed to call the gateway with credentials.
type CORSConfig struct {
	AllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000" yaml:"allow_origins"`
}

// Load loads configuration from environment variables. When
// GATEWAY_CONFIG_FILE names a YAML file, it is applied first and the
// environment overrides it.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("GATEWAY_CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := processEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// processEnv applies only the variables actually present in the
// environment, so values coming from the YAML file survive.
func processEnv(cfg *Config) error {
	var fromEnv Config
	if err := envconfig.Process("", &fromEnv); err != nil {
		return err
	}
	overlay(cfg, &fromEnv)
	return nil
}

func overlay(dst, env *Config) {
	set := func(key string) bool {
		_, ok := os.LookupEnv(key)
		return ok
	}

	if set("ENV") {
		dst.Env = env.Env
	}

	if set("PORT") {
		dst.Server.Port = env.Server.Port
	}
	if set("HOST") {
		dst.Server.Host = env.Server.Host
	}
	if set("SHUTDOWN_TIMEOUT") {
		dst.Server.ShutdownTimeout = env.Server.ShutdownTimeout
	}

	if set("UPSTREAM_BASE") {
		dst.Upstream.BaseURL = env.Upstream.BaseURL
	}
	if set("UPSTREAM_TIMEOUT") {
		dst.Upstream.Timeout = env.Upstream.Timeout
	}
	if set("UPSTREAM_BREAKER_FAILURES") {
		dst.Upstream.BreakerFailures = env.Upstream.BreakerFailures
	}
	if set("UPSTREAM_BREAKER_TIMEOUT") {
		dst.Upstream.BreakerTimeout = env.Upstream.BreakerTimeout
	}

	if set("GATEWAY_PREFIX") {
		dst.Gateway.Prefix = env.Gateway.Prefix
	}
	if set("GATEWAY_UPSTREAM_ROOT_PATH") {
		dst.Gateway.UpstreamRootPath = env.Gateway.UpstreamRootPath
	}
	if set("GATEWAY_UPSTREAM_API_PATH") {
		dst.Gateway.UpstreamAPIPath = env.Gateway.UpstreamAPIPath
	}
	if set("GATEWAY_ALLOWED_COOKIES") {
		dst.Gateway.AllowedCookies = env.Gateway.AllowedCookies
	}
	if set("GATEWAY_HTTPONLY_COOKIES") {
		dst.Gateway.HTTPOnlyCookies = env.Gateway.HTTPOnlyCookies
	}
	if set("GATEWAY_COERCE_NO_CONTENT") {
		dst.Gateway.CoerceNoContent = env.Gateway.CoerceNoContent
	}
	if set("GATEWAY_MAX_BODY_MIB") {
		dst.Gateway.MaxRequestBodyMiB = env.Gateway.MaxRequestBodyMiB
	}

	if set("SESSION_GATEWAY_URL") {
		dst.Session.GatewayURL = env.Session.GatewayURL
	}
	if set("SESSION_TIMEOUT") {
		dst.Session.Timeout = env.Session.Timeout
	}
	if set("SESSION_SETTLE_DELAY") {
		dst.Session.SettleDelay = env.Session.SettleDelay
	}
	if set("SESSION_CONFIRM_DELAY") {
		dst.Session.ConfirmDelay = env.Session.ConfirmDelay
	}

	if set("LOG_LEVEL") {
		dst.Logging.Level = env.Logging.Level
	}
	if set("LOG_DEV") {
		dst.Logging.Development = env.Logging.Development
	}
	if set("LOG_FILE") {
		dst.Logging.File = env.Logging.File
	}

	if set("RATE_LIMIT_RPS") {
		dst.RateLimit.RequestsPerSecond = env.RateLimit.RequestsPerSecond
	}
	if set("RATE_LIMIT_BURST") {
		dst.RateLimit.Burst = env.RateLimit.Burst
	}
	if set("RATE_LIMIT_ENABLED") {
		dst.RateLimit.Enabled = env.RateLimit.Enabled
	}

	if set("CORS_ALLOW_ORIGINS") {
		dst.CORS.AllowOrigins = env.CORS.AllowOrigins
	}
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:         "http://localhost:8080/server/api",
			Timeout:         8 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Gateway: GatewayConfig{
			Prefix:            "/proxy",
			UpstreamRootPath:  "/server",
			UpstreamAPIPath:   "/server/api",
			AllowedCookies:    []string{"JSESSIONID", "DSPACE-XSRF-COOKIE", "XSRF-TOKEN", "*XSRF*"},
			HTTPOnlyCookies:   []string{"JSESSIONID", "*SESSION*", "*XSRF*"},
			CoerceNoContent:   true,
			MaxRequestBodyMiB: 64,
		},
		Session: SessionConfig{
			GatewayURL:   "http://localhost:8000/proxy",
			Timeout:      8 * time.Second,
			SettleDelay:  300 * time.Millisecond,
			ConfirmDelay: time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"http://localhost:3000"},
		},
	}
}

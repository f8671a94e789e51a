// Package config provides 12-factor configuration management for the gateway.
//
// Configuration is loaded from environment variables with sensible defaults.
// An optional YAML file named by GATEWAY_CONFIG_FILE is applied first, so
// deployments can keep cookie rules in a file and still override single
// values from the environment.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, shutdown timeout)
//   - Upstream: repository API base URL, request timeout, circuit breaker
//   - Gateway: proxy prefix, cookie allow-list and rewrite rules
//   - Session: session bridge settings used by the CLI
//   - Logging: Log level, output format and optional rotated file
//   - RateLimit: Per-IP rate limiting configuration
//   - CORS: browser origins allowed to send credentials
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Proxying %s on %s:%s\n", cfg.Upstream.BaseURL, cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - ENV, PORT, HOST, SHUTDOWN_TIMEOUT
//   - UPSTREAM_BASE, UPSTREAM_TIMEOUT, UPSTREAM_BREAKER_FAILURES, UPSTREAM_BREAKER_TIMEOUT
//   - GATEWAY_PREFIX, GATEWAY_ALLOWED_COOKIES, GATEWAY_HTTPONLY_COOKIES, GATEWAY_COERCE_NO_CONTENT
//   - LOG_LEVEL, LOG_DEV, LOG_FILE
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - CORS_ALLOW_ORIGINS
package config

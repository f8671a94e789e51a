// Package middleware provides the gin middleware in front of the gateway.
//
// Middleware stack includes:
//   - RequestID: X-Request-ID propagation or generation
//   - AccessLog: one zap line per request
//   - CORS: credentialed cross-origin access exposing X-XSRF-TOKEN
//   - RateLimit: per-IP token bucket with idle client eviction
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.AccessLog(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig("https://app.example.org")))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware

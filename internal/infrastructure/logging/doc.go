// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// When a file is configured, every line is also written as JSON to a file
// rotated by lumberjack (100 MiB per file, 5 backups, 28 days, gzip).
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Gateway starting", zap.String("port", "8000"))
//	logger.Error("Upstream call failed", zap.Error(err))
package logging

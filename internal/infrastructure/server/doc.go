// Package server assembles the gateway's HTTP surface: the gin engine with
// recovery, request IDs, access logs, metrics, CORS and rate limiting in
// front of the proxy routes, plus /health and /metrics.
package server

/*
Package monitoring provides Prometheus metrics for the gateway.

# Overview

Metrics cover inbound HTTP requests (labelled by route template), upstream
round trips, circuit breaker state and the gateway's rewrite work (cookies
rewritten, CSRF tokens surfaced, login bodies transformed).

Every Metrics value owns a private registry, so tests can build as many as
they like.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, http.MethodGet)
	// ... call upstream ...
	timer.Stop(resp.StatusCode())
*/
package monitoring

// Package upstream is the HTTP client the gateway forwards through.
//
// It wraps resty over a pooled transport and adds what a proxy needs:
// no redirects are followed, no cookies are remembered between calls, every
// call is bounded by a timeout, and a circuit breaker stops hammering an
// upstream that keeps failing. Upstream error statuses are returned as
// responses; only transport failures are errors.
package upstream

/*
Package resilience provides retry with backoff and a circuit breaker.

# Retry

Retry and Do wrap an operation whose failure mode may be transient. Errors
are classified by IsRetryable: aborted transfers, timeouts and connection
resets are retried, everything else (bad credentials, validation errors)
is returned immediately. The delay before retry n (0-based) is
base * 2^n, capped at the max delay.

	err := resilience.Retry(ctx, func(ctx context.Context) error {
		return bridge.UploadOnce(ctx, path, name, data)
	}, resilience.WithAttempts(3), resilience.WithBaseDelay(time.Second))

Callers can force a classification with Retryable(err).

# Circuit breaker

Breaker stops calling a dependency that keeps failing.

	breaker := resilience.New("upstream", resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	err := breaker.Execute(func() error {
		return call()
	})

States:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience

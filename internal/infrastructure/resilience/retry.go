package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultAttempts  = 3
	DefaultBaseDelay = time.Second
	DefaultMaxDelay  = 30 * time.Second
)

// retryableError marks an error as transient regardless of its shape.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as transient so Retry will try again.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err looks like an aborted or timed-out
// transfer. Anything else is terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var marked *retryableError
	if errors.As(err, &marked) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, target := range []error{
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.ECONNREFUSED,
		syscall.EPIPE,
		io.ErrUnexpectedEOF,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	// A bare EOF only means a dropped connection when the transport saw it.
	var urlErr *url.Error
	return errors.As(err, &urlErr) && errors.Is(urlErr.Err, io.EOF)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type retryConfig struct {
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	classify  func(error) bool
	sleep     Sleeper
	onRetry   func(attempt int, delay time.Duration, err error)
}

// RetryOption customizes Retry.
type RetryOption func(*retryConfig)

// WithAttempts sets the total number of attempts, including the first one.
func WithAttempts(n int) RetryOption {
	return func(c *retryConfig) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(c *retryConfig) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithMaxDelay caps any single delay.
func WithMaxDelay(d time.Duration) RetryOption {
	return func(c *retryConfig) {
		if d > 0 {
			c.maxDelay = d
		}
	}
}

// WithClassifier replaces IsRetryable.
func WithClassifier(fn func(error) bool) RetryOption {
	return func(c *retryConfig) {
		if fn != nil {
			c.classify = fn
		}
	}
}

// WithSleeper replaces the timer-based wait. Tests use it to record delays.
func WithSleeper(fn Sleeper) RetryOption {
	return func(c *retryConfig) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithOnRetry registers a hook invoked before every wait.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) RetryOption {
	return func(c *retryConfig) {
		c.onRetry = fn
	}
}

// Backoff returns the delay before retry number attempt (0-based):
// base * 2^attempt, capped at max.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	return retryablehttp.DefaultBackoff(base, max, attempt, nil)
}

// Retry runs op until it succeeds, fails with a terminal error, or the
// attempt budget is spent. The last error is always returned.
func Retry(ctx context.Context, op func(ctx context.Context) error, opts ...RetryOption) error {
	_, err := Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}

// Do is Retry for operations that produce a value.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...RetryOption) (T, error) {
	cfg := retryConfig{
		attempts:  DefaultAttempts,
		baseDelay: DefaultBaseDelay,
		maxDelay:  DefaultMaxDelay,
		classify:  IsRetryable,
		sleep:     Sleep,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		result T
		err    error
	)
	for attempt := 0; attempt < cfg.attempts; attempt++ {
		result, err = op(ctx)
		if err == nil {
			return result, nil
		}
		if !cfg.classify(err) || attempt == cfg.attempts-1 {
			return result, err
		}
		// The caller gave up; its own deadline is not a transient failure.
		if ctx.Err() != nil {
			return result, err
		}

		delay := Backoff(cfg.baseDelay, cfg.maxDelay, attempt)
		if cfg.onRetry != nil {
			cfg.onRetry(attempt+1, delay, err)
		}
		if serr := cfg.sleep(ctx, delay); serr != nil {
			return result, err
		}
	}
	return result, err
}

package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0

	err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("upload: %w", io.ErrUnexpectedEOF)
		}
		return nil
	}, WithBaseDelay(100*time.Millisecond), WithSleeper(rec.sleep))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, rec.delays, 2)
	assert.Equal(t, 100*time.Millisecond, rec.delays[0])
	assert.Equal(t, 200*time.Millisecond, rec.delays[1])
}

func TestRetryStopsOnTerminalError(t *testing.T) {
	rec := &recordingSleeper{}
	errValidation := errors.New("validation failed")
	calls := 0

	err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return errValidation
	}, WithSleeper(rec.sleep))

	assert.ErrorIs(t, err, errValidation)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestRetryReturnsLastErrorWhenExhausted(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0

	err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(fmt.Errorf("attempt %d aborted", calls))
	}, WithAttempts(4), WithBaseDelay(time.Second), WithSleeper(rec.sleep))

	require.Error(t, err)
	assert.Equal(t, "attempt 4 aborted", err.Error())
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestRetryStopsWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Retry(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return Retryable(errors.New("connection aborted"))
	}, WithBaseDelay(time.Hour))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoReturnsValue(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0

	got, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", timeoutError{}
		}
		return "stored", nil
	}, WithSleeper(rec.sleep))

	require.NoError(t, err)
	assert.Equal(t, "stored", got)
	assert.Equal(t, []time.Duration{DefaultBaseDelay}, rec.delays)
}

func TestOnRetryHook(t *testing.T) {
	var seen []int
	_ = Retry(context.Background(), func(ctx context.Context) error {
		return syscall.ECONNRESET
	}, WithSleeper((&recordingSleeper{}).sleep), WithOnRetry(func(attempt int, _ time.Duration, _ error) {
		seen = append(seen, attempt)
	}))

	assert.Equal(t, []int{1, 2}, seen)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("get status: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutError{}}, true},
		{"connection reset", fmt.Errorf("post: %w", syscall.ECONNRESET), true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"marked", Retryable(errors.New("anything")), true},
		{"transport eof", &url.Error{Op: "Post", URL: "http://gw/proxy/items", Err: io.EOF}, true},
		{"bare eof", io.EOF, false},
		{"timeout in message", errors.New("validation failed: field embargoTimeout is required"), false},
		{"aborted in message", errors.New("request aborted by policy: file type not allowed"), false},
		{"timed out in message", errors.New("upstream said: timed out"), false},
		{"bad credentials", errors.New("invalid credentials"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(time.Second, time.Minute, 0))
	assert.Equal(t, 2*time.Second, Backoff(time.Second, time.Minute, 1))
	assert.Equal(t, 8*time.Second, Backoff(time.Second, time.Minute, 3))
	assert.Equal(t, 5*time.Second, Backoff(time.Second, 5*time.Second, 10))
}

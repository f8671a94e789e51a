package session

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/scholargate/internal/infrastructure/resilience"
)

// Upload posts data as a multipart "file" part to path through the gateway.
// Aborted transfers, timeouts and gateway-side upstream outages are retried
// with exponential backoff; any other failure is returned at once.
func (b *Bridge) Upload(ctx context.Context, path, filename string, data []byte) (*Response, error) {
	contentType := mimetype.Detect(data).String()

	return resilience.Do(ctx, func(ctx context.Context) (*Response, error) {
		resp, err := b.request(ctx).
			SetMultipartField("file", filename, contentType, bytes.NewReader(data)).
			Post(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnection, err)
		}
		b.captureToken(resp)

		if resp.IsSuccess() {
			return &Response{
				StatusCode: resp.StatusCode(),
				Header:     resp.Header(),
				Body:       resp.Body(),
			}, nil
		}

		statusErr := &StatusError{StatusCode: resp.StatusCode(), Message: errorMessage(resp.Body())}
		if transientStatus(statusErr) {
			return nil, resilience.Retryable(statusErr)
		}
		return nil, statusErr
	},
		resilience.WithAttempts(b.opts.UploadAttempts),
		resilience.WithBaseDelay(b.opts.UploadBaseDelay),
		resilience.WithSleeper(b.opts.Sleep),
		resilience.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			b.logger.Warn("Upload failed, retrying",
				zap.String("file", filename),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}),
	)
}

// transientStatus reports whether a failed status means the transfer, not
// the request, went wrong: gateway outages and upstream timeouts.
func transientStatus(err *StatusError) bool {
	switch err.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	case http.StatusInternalServerError:
		msg := strings.ToLower(err.Message)
		return strings.Contains(msg, "timed out") || strings.Contains(msg, "unavailable")
	default:
		return false
	}
}

func errorMessage(body []byte) string {
	var eb errorBody
	if err := sonic.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if eb.Message != "" {
		return eb.Message
	}
	return eb.Error
}

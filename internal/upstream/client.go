package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/GriffinCanCode/scholargate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/scholargate/internal/infrastructure/resilience"
)

// ErrUnavailable is returned while the circuit breaker refuses calls.
var ErrUnavailable = errors.New("upstream unavailable: circuit breaker open")

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// BreakerFailures consecutive transport failures open the circuit.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	OnStateChange   func(name string, from, to resilience.State)
	Logger          *logging.Logger
}

// Request is one call to forward upstream.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// Response is the upstream answer, fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client forwards requests to the repository API. It never follows
// redirects, keeps no cookies between calls and is safe for concurrent use.
type Client struct {
	resty   *resty.Client
	breaker *resilience.Breaker
	base    *url.URL
	timeout time.Duration
}

// New creates an upstream client guarded by a circuit breaker.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("upstream base URL must use http or https scheme, got %q", opts.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("upstream base URL has no host: %q", opts.BaseURL)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	// Pooled transport from retryablehttp; retries belong to callers, not here.
	// The deadline comes from the per-call context in Do.
	transport := retryablehttp.NewClient().HTTPClient.Transport

	restyClient := resty.New()
	restyClient.
		SetTransport(transport).
		SetRetryCount(0).
		SetCookieJar(nil).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		})).
		SetLogger(logger.Named("resty").Sugar())

	breaker := resilience.New("upstream", resilience.Settings{
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		IsFailure: func(err error) bool {
			// A browser hanging up is not the upstream's fault.
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnStateChange: opts.OnStateChange,
	})

	return &Client{
		resty:   restyClient,
		breaker: breaker,
		base:    base,
		timeout: opts.Timeout,
	}, nil
}

// URL joins a sub-path and raw query onto the base URL. The sub-path is
// cleaned first, so dot segments cannot climb above the base.
func (c *Client) URL(subPath, rawQuery string) string {
	u := *c.base
	u.Path = c.base.Path + path.Clean("/"+subPath)
	if strings.HasSuffix(subPath, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawPath = ""
	u.RawQuery = rawQuery
	return u.String()
}

// Do performs one upstream round trip bounded by the client timeout.
// HTTP error statuses are responses, not errors; only transport failures,
// timeouts and an open circuit return an error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := resilience.Call(c.breaker, func() (*resty.Response, error) {
		r := c.resty.R().SetContext(ctx)
		for key, values := range req.Header {
			for _, v := range values {
				r.Header.Add(key, v)
			}
		}
		if len(req.Body) > 0 {
			r.SetBody(req.Body)
		}
		return r.Execute(req.Method, c.URL(req.Path, req.RawQuery))
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return nil, ErrUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// BreakerCounts returns circuit breaker statistics
func (c *Client) BreakerCounts() resilience.Counts {
	return c.breaker.Counts()
}

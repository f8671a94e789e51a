package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/GriffinCanCode/scholargate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/scholargate/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/scholargate/internal/shared/repo"
)

// Options configures a Bridge.
type Options struct {
	// GatewayURL is where the gateway is mounted, e.g. http://localhost:8000/proxy.
	GatewayURL string
	// Timeout bounds every call.
	Timeout time.Duration
	// SettleDelay is waited after an accepted login before the first
	// status check; ConfirmDelay before the second.
	SettleDelay  time.Duration
	ConfirmDelay time.Duration
	// UploadAttempts and UploadBaseDelay tune Upload's retry.
	UploadAttempts  int
	UploadBaseDelay time.Duration

	Logger *logging.Logger
	// Sleep replaces timer-based waits. Tests use it to skip delays.
	Sleep resilience.Sleeper
}

// Response is a fully read answer to a call issued through the gateway.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Bridge keeps one client's CSRF token and session state current while it
// talks to the repository through the gateway. Safe for concurrent use;
// token reads may be stale, which costs at most one extra bootstrap call.
type Bridge struct {
	client *resty.Client
	jar    http.CookieJar
	base   *url.URL
	opts   Options
	logger *logging.Logger

	// mu guards the following fields.
	mu sync.RWMutex
	// token is the last CSRF token seen in a response header.
	token string
	state State
	// initialized is set once a session has been confirmed.
	initialized bool
}

// New creates a bridge talking to the gateway at opts.GatewayURL.
func New(opts Options) (*Bridge, error) {
	base, err := url.Parse(strings.TrimRight(opts.GatewayURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("gateway URL must use http or https scheme, got %q", opts.GatewayURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.ConfirmDelay < 0 {
		opts.ConfirmDelay = 0
	}
	if opts.UploadAttempts <= 0 {
		opts.UploadAttempts = resilience.DefaultAttempts
	}
	if opts.UploadBaseDelay <= 0 {
		opts.UploadBaseDelay = resilience.DefaultBaseDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = resilience.Sleep
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	logger := opts.Logger.Named("session")

	client := resty.New().
		SetBaseURL(base.String()).
		SetCookieJar(jar).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader(repo.HeaderAjax, repo.HeaderAjaxValue).
		SetLogger(logger.Named("resty").Sugar())

	return &Bridge{
		client: client,
		jar:    jar,
		base:   base,
		opts:   opts,
		logger: logger,
		state:  StateUnauthenticated,
	}, nil
}

// State returns the current session state.
func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Initialized reports whether a session has been confirmed since the last
// logout.
func (b *Bridge) Initialized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialized
}

// Token returns the cached CSRF token: the CSRF cookie currently in the jar
// if there is one, otherwise the last token seen in a response header.
func (b *Bridge) Token() string {
	for _, c := range b.jar.Cookies(b.base) {
		if repo.IsCSRFCookie(c.Name) && c.Value != "" {
			return c.Value
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.token
}

// fire runs the state machine and records the new state.
func (b *Bridge) fire(e Event, retries int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.state
	next, retry := transition(prev, e, retries)
	b.state = next
	if next == StateAuthenticated {
		b.initialized = true
	}
	if prev != next {
		b.logger.Debug("Session state changed",
			zap.Stringer("from", prev),
			zap.Stringer("to", next),
			zap.Stringer("event", e),
		)
	}
	return retry
}

// captureToken remembers a token handed out in resp, replacing any older one.
func (b *Bridge) captureToken(resp *resty.Response) {
	token := resp.Header().Get(repo.HeaderCSRF)
	if token == "" {
		token = resp.Header().Get(repo.HeaderUpstreamCSRF)
	}
	if token == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.token != token {
		b.token = token
		b.logger.Debug("Captured rotated CSRF token")
	}
}

// clearToken forgets the remembered token and expires the jar's CSRF cookies.
func (b *Bridge) clearToken() {
	var expired []*http.Cookie
	for _, c := range b.jar.Cookies(b.base) {
		if !repo.IsCSRFCookie(c.Name) {
			continue
		}
		for _, p := range []string{"/", b.base.Path} {
			if p != "" {
				expired = append(expired, &http.Cookie{Name: c.Name, Path: p, MaxAge: -1})
			}
		}
	}
	if len(expired) > 0 {
		b.jar.SetCookies(b.base, expired)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = ""
}

// request starts a call carrying the current token.
func (b *Bridge) request(ctx context.Context) *resty.Request {
	r := b.client.R().SetContext(ctx)
	if token := b.Token(); token != "" {
		r.SetHeader(repo.HeaderCSRF, token)
	}
	return r
}

// EnsureCSRFToken returns a usable token, fetching one from the bootstrap
// endpoint only when none is cached. An empty token with a nil error means
// the upstream has not issued one yet.
func (b *Bridge) EnsureCSRFToken(ctx context.Context) (string, error) {
	if token := b.Token(); token != "" {
		b.fire(EventTokenAcquired, 0)
		return token, nil
	}

	resp, err := b.client.R().SetContext(ctx).Get(repo.PathCSRF)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConnection, err)
	}
	b.captureToken(resp)

	token := b.Token()
	if token == "" {
		b.logger.Debug("No CSRF token issued", zap.Int("status", resp.StatusCode()))
		return "", nil
	}
	b.fire(EventTokenAcquired, 0)
	return token, nil
}

// Do issues an authenticated call through the gateway. Non-2xx statuses
// are returned as responses, not errors.
func (b *Bridge) Do(ctx context.Context, method, path string, body []byte) (*Response, error) {
	r := b.request(ctx)
	if len(body) > 0 {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := r.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	b.captureToken(resp)

	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}

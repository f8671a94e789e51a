package session

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/scholargate/internal/shared/repo"
)

// Principal is the authenticated account as reported by the status endpoint.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AuthStatus is the normalized answer of the status endpoint.
type AuthStatus struct {
	Authenticated bool       `json:"authenticated"`
	User          *Principal `json:"user,omitempty"`
}

type statusBody struct {
	Authenticated bool `json:"authenticated"`
	Embedded      struct {
		EPerson *Principal `json:"eperson"`
	} `json:"_embedded"`
}

type loginBody struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var stripHTML = bluemonday.StrictPolicy()

// AuthStatus asks the upstream whether the bridge's session is live. It
// never fails: error statuses, unreadable bodies and transport errors all
// read as unauthenticated.
func (b *Bridge) AuthStatus(ctx context.Context) AuthStatus {
	resp, err := b.request(ctx).Get(repo.PathStatus)
	if err != nil {
		b.logger.Debug("Status check failed", zap.Error(err))
		return AuthStatus{}
	}
	b.captureToken(resp)

	if !resp.IsSuccess() {
		b.fire(EventSessionLost, 0)
		return AuthStatus{}
	}

	var body statusBody
	if err := sonic.Unmarshal(resp.Body(), &body); err != nil {
		b.logger.Debug("Unreadable status body", zap.Error(err))
		b.fire(EventSessionLost, 0)
		return AuthStatus{}
	}

	status := AuthStatus{Authenticated: body.Authenticated}
	if body.Authenticated {
		status.User = body.Embedded.EPerson
	}

	switch {
	case status.Authenticated && status.User != nil:
		b.fire(EventSessionConfirmed, 0)
	case !status.Authenticated:
		b.fire(EventSessionLost, 0)
	}
	return status
}

// Login authenticates with the upstream and waits until a status check
// confirms the session. A rejected CSRF token is refreshed and the login
// replayed once; bad credentials are never retried.
func (b *Bridge) Login(ctx context.Context, identifier, secret string) (*AuthStatus, error) {
	for retries := 0; ; retries++ {
		status, err := b.attemptLogin(ctx, identifier, secret)
		if !errors.Is(err, ErrCSRFMismatch) {
			return status, err
		}

		b.clearToken()
		if !b.fire(EventCSRFMismatch, retries) {
			return nil, err
		}
		b.logger.Info("CSRF token rejected, retrying login with a fresh token")
	}
}

func (b *Bridge) attemptLogin(ctx context.Context, identifier, secret string) (*AuthStatus, error) {
	if _, err := b.EnsureCSRFToken(ctx); err != nil {
		return nil, err
	}

	payload, err := sonic.Marshal(loginBody{User: identifier, Password: secret})
	if err != nil {
		return nil, fmt.Errorf("failed to encode credentials: %w", err)
	}

	resp, err := b.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(repo.PathLogin)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	b.captureToken(resp)

	if !resp.IsSuccess() {
		msg, csrf := parseLoginError(resp.Body())
		if csrf {
			return nil, fmt.Errorf("%w: %s", ErrCSRFMismatch, msg)
		}
		if msg == "" {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, msg)
	}

	return b.confirmSession(ctx)
}

// confirmSession checks the status after the settle delay and once more
// after the confirm delay.
func (b *Bridge) confirmSession(ctx context.Context) (*AuthStatus, error) {
	for _, delay := range []time.Duration{b.opts.SettleDelay, b.opts.ConfirmDelay} {
		if err := b.opts.Sleep(ctx, delay); err != nil {
			return nil, err
		}
		status := b.AuthStatus(ctx)
		if status.Authenticated && status.User != nil {
			b.logger.Info("Session established", zap.String("user", status.User.Email))
			return &status, nil
		}
	}
	return nil, ErrSessionNotEstablished
}

// Logout ends the session. The upstream call is best effort; afterwards the
// bridge is always unauthenticated with no token.
func (b *Bridge) Logout(ctx context.Context) {
	resp, err := b.request(ctx).Post(repo.PathLogout)
	switch {
	case err != nil:
		b.logger.Warn("Logout request failed", zap.Error(err))
	case !resp.IsSuccess():
		b.logger.Warn("Logout rejected", zap.Int("status", resp.StatusCode()))
	}

	b.clearToken()
	b.mu.Lock()
	b.initialized = false
	b.mu.Unlock()
	b.fire(EventLoggedOut, 0)
}

// parseLoginError extracts a displayable message from an error body and
// reports whether it describes a CSRF rejection.
func parseLoginError(body []byte) (msg string, csrf bool) {
	var eb errorBody
	if err := sonic.Unmarshal(body, &eb); err != nil {
		eb.Message = string(body)
	}

	msg = strings.TrimSpace(html.UnescapeString(stripHTML.Sanitize(eb.Message)))
	csrf = strings.Contains(strings.ToLower(eb.Message+" "+eb.Error), "csrf")
	return msg, csrf
}

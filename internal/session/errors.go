package session

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection wraps transport failures talking to the gateway.
	ErrConnection = errors.New("connection error, please retry")
	// ErrCSRFMismatch is returned when the upstream keeps rejecting the
	// CSRF token after the one automatic retry.
	ErrCSRFMismatch = errors.New("csrf token rejected")
	// ErrInvalidCredentials is returned when the upstream refuses a login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionNotEstablished is returned when a login was accepted but no
	// status check confirmed the session. Reloading and retrying usually helps.
	ErrSessionNotEstablished = errors.New("session did not establish, reload and retry")
)

// StatusError is a non-2xx answer to a call issued through the gateway.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/scholargate/internal/upstream"
)

const proxyErrorTitle = "Proxy Error"

// ErrorResponse is the body of every response the gateway itself fails.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// abortWithError ends the request with a 500. details is dropped in
// production.
func (g *Gateway) abortWithError(c *gin.Context, message, details string) {
	body := ErrorResponse{
		Error:   proxyErrorTitle,
		Message: message,
	}
	if !g.production {
		body.Details = details
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, body)
}

// classify names the failure for metrics and picks the user-facing message.
func classify(err error) (errorType, message string) {
	var netErr net.Error
	switch {
	case errors.Is(err, upstream.ErrUnavailable):
		return "circuit_open", "Upstream service is temporarily unavailable"
	case errors.Is(err, context.Canceled):
		return "canceled", "Request was canceled"
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return "timeout", "Upstream service timed out"
	default:
		return "transport", "Failed to reach upstream service"
	}
}

package gateway

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/scholargate/internal/shared/repo"
	"github.com/GriffinCanCode/scholargate/internal/upstream"
)

// forwardedResponseHeaders are the only upstream headers the browser sees
// verbatim; everything else is either rewritten or dropped.
var forwardedResponseHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Cache-Control",
	"Pragma",
	"Expires",
	"Location",
}

// writeResponse relays the upstream answer with cookies and the CSRF token
// rewritten for the gateway's origin.
func (g *Gateway) writeResponse(c *gin.Context, resp *upstream.Response) {
	h := c.Writer.Header()
	for _, name := range forwardedResponseHeaders {
		for _, v := range resp.Header.Values(name) {
			h.Add(name, v)
		}
	}

	if token, source := extractToken(resp.Header); token != "" {
		h.Set(repo.HeaderCSRF, token)
		g.metrics.IncTokenSurfaced(source)
	}

	for _, line := range resp.Header.Values("Set-Cookie") {
		sc, err := ParseSetCookie(line)
		if err != nil {
			g.logger.Warn("Dropping malformed upstream cookie", zap.Error(err))
			continue
		}
		g.cookies.Rewrite(sc)
		h.Add("Set-Cookie", sc.String())
		g.metrics.IncCookieRewritten(cookieKind(sc.Name))

		// Some upstreams deliver the token only through the cookie.
		if repo.IsCSRFCookie(sc.Name) && sc.Value != "" && h.Get(repo.HeaderCSRF) == "" {
			h.Set(repo.HeaderCSRF, sc.Value)
			g.metrics.IncTokenSurfaced("cookie")
		}
	}

	exposeHeader(h, repo.HeaderCSRF)
	h.Set("Access-Control-Allow-Credentials", "true")

	if resp.StatusCode == http.StatusNoContent {
		h.Del("Content-Length")
		if g.coerceNoContent {
			if h.Get("Content-Type") == "" {
				h.Set("Content-Type", "text/plain")
			}
			c.Status(http.StatusOK)
			c.Writer.WriteHeaderNow()
			return
		}
		c.Status(http.StatusNoContent)
		c.Writer.WriteHeaderNow()
		return
	}

	if c.Request.Method != http.MethodHead && h.Get("Content-Length") != "" {
		h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}

	c.Status(resp.StatusCode)
	c.Writer.WriteHeaderNow()
	if c.Request.Method == http.MethodHead || len(resp.Body) == 0 {
		return
	}
	if _, err := c.Writer.Write(resp.Body); err != nil {
		g.logger.Debug("Client went away while writing body", zap.Error(err))
	}
}

// extractToken returns the CSRF token of an upstream response and the
// header it came from.
func extractToken(h http.Header) (string, string) {
	if token := h.Get(repo.HeaderUpstreamCSRF); token != "" {
		return token, "upstream_header"
	}
	if token := h.Get(repo.HeaderCSRF); token != "" {
		return token, "header"
	}
	return "", ""
}

// exposeHeader adds name to Access-Control-Expose-Headers, keeping whatever
// the CORS middleware already listed there.
func exposeHeader(h http.Header, name string) {
	const key = "Access-Control-Expose-Headers"
	current := strings.Join(h.Values(key), ",")
	for _, v := range strings.Split(current, ",") {
		if strings.EqualFold(strings.TrimSpace(v), name) {
			return
		}
	}
	if current == "" {
		h.Set(key, name)
		return
	}
	h.Set(key, current+","+name)
}

// cookieKind buckets upstream cookie names for metric labels.
func cookieKind(name string) string {
	switch {
	case repo.IsCSRFCookie(name):
		return "csrf"
	case name == repo.CookieSession:
		return "session"
	default:
		return "other"
	}
}

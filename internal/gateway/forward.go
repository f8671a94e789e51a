package gateway

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/scholargate/internal/shared/repo"
	"github.com/GriffinCanCode/scholargate/internal/upstream"
)

const formContentType = "application/x-www-form-urlencoded"

// Methods are the inbound methods the gateway forwards.
var Methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodHead,
	http.MethodOptions,
}

// loginCredentials is the JSON body the application posts to the login route.
type loginCredentials struct {
	User     *string `json:"user"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// buildRequest turns the inbound request into the upstream request: only
// the CSRF header, allow-listed cookies and the content type survive.
func (g *Gateway) buildRequest(c *gin.Context, subPath string) (*upstream.Request, error) {
	header := make(http.Header)
	header.Set("Accept", "application/json")
	header.Set("Cache-Control", "no-cache")
	header.Set(repo.HeaderAjax, repo.HeaderAjaxValue)
	if token := c.GetHeader(repo.HeaderCSRF); token != "" {
		header.Set(repo.HeaderCSRF, token)
	}
	if cookie := g.filterCookies(c.Request.Cookies()); cookie != "" {
		header.Set("Cookie", cookie)
	}
	if ct := c.GetHeader("Content-Type"); ct != "" {
		header.Set("Content-Type", ct)
	}

	req := &upstream.Request{
		Method:   c.Request.Method,
		Path:     subPath,
		RawQuery: c.Request.URL.RawQuery,
		Header:   header,
	}

	if req.Method == http.MethodGet || req.Method == http.MethodHead || c.Request.Body == nil {
		return req, nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, g.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	req.Body = body

	if isLoginPath(subPath) {
		if form, ok := loginForm(body); ok {
			req.Body = form
			header.Set("Content-Type", formContentType)
			g.metrics.IncLoginTransform("form")
		} else {
			g.metrics.IncLoginTransform("raw")
		}
	}

	return req, nil
}

// filterCookies keeps only the allow-listed cookies so unrelated browser
// cookies never leave for the upstream.
func (g *Gateway) filterCookies(cookies []*http.Cookie) string {
	kept := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		if g.allowedCookies.Match(ck.Name) {
			kept = append(kept, ck.Name+"="+ck.Value)
		}
	}
	return strings.Join(kept, "; ")
}

// isLoginPath compares the cleaned path, the same one the upstream client
// requests.
func isLoginPath(subPath string) bool {
	return path.Clean("/"+subPath) == repo.PathLogin
}

// loginForm re-encodes {user|email, password} as the form the upstream's
// login endpoint accepts. ok is false when the body is not such JSON.
func loginForm(body []byte) ([]byte, bool) {
	var creds loginCredentials
	if err := sonic.Unmarshal(body, &creds); err != nil {
		return nil, false
	}

	user := deref(creds.User)
	if user == "" {
		user = deref(creds.Email)
	}

	form := "user=" + url.QueryEscape(user) + "&password=" + url.QueryEscape(deref(creds.Password))
	return []byte(form), true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Package repo names the pieces of the upstream repository API's session
// and CSRF protocol that both the gateway and the session bridge rely on.
package repo

// Header names.
const (
	// HeaderUpstreamCSRF is the response header the repository uses to hand
	// out a fresh CSRF token.
	HeaderUpstreamCSRF = "DSPACE-XSRF-TOKEN"
	// HeaderCSRF is the request header the repository expects the token
	// echoed in, and the canonical response header the gateway exposes it as.
	HeaderCSRF = "X-XSRF-TOKEN"
	// HeaderAjax marks requests as XHR; the repository answers them with JSON
	// errors instead of login redirects.
	HeaderAjax      = "X-Requested-With"
	HeaderAjaxValue = "XMLHttpRequest"
)

// Cookie names.
const (
	CookieCSRF    = "DSPACE-XSRF-COOKIE"
	CookieSession = "JSESSIONID"
	// CookieCSRFAlt is the generic double-submit cookie some deployments use.
	CookieCSRFAlt = "XSRF-TOKEN"
)

// Endpoint paths relative to the API base.
const (
	PathLogin  = "/authn/login"
	PathLogout = "/authn/logout"
	PathStatus = "/authn/status"
	PathCSRF   = "/security/csrf"
)

// IsCSRFCookie reports whether a cookie with this name carries the CSRF token.
func IsCSRFCookie(name string) bool {
	return name == CookieCSRF || name == CookieCSRFAlt
}

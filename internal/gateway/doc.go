/*
Package gateway is the same-origin proxy between the browser and the
repository API.

Every request under the mount prefix is forwarded upstream with a reduced
set of headers and cookies:

  - Accept: application/json and X-Requested-With: XMLHttpRequest
  - the X-XSRF-TOKEN header when the browser sent one
  - only allow-listed cookies (session and CSRF cookies by default)
  - the inbound Content-Type

A JSON login body ({"user"|"email", "password"}) is re-encoded as the
urlencoded form the upstream login endpoint expects.

On the way back every Set-Cookie is rewritten for the gateway's origin:

	DSPACE-XSRF-COOKIE=abc; Path=/server; Secure; SameSite=None
	DSPACE-XSRF-COOKIE=abc; Path=/; SameSite=Lax; HttpOnly

and the CSRF token, whether it arrived as DSPACE-XSRF-TOKEN, X-XSRF-TOKEN or
only as a cookie, is exposed to scripts as X-XSRF-TOKEN.

Failures never escape the handler. Upstream errors, timeouts, an open
circuit breaker and panics all produce:

	HTTP/1.1 500 Internal Server Error
	{"error":"Proxy Error","message":"...","details":"..."}

with details omitted in production.
*/
package gateway

/*
Package session is the client side of the gateway: a Bridge holds one
user's cookies, CSRF token and authentication state while it talks to the
repository through the proxy.

	bridge, err := session.New(session.Options{GatewayURL: "http://localhost:8000/proxy"})
	status, err := bridge.Login(ctx, "ana@example.org", "secret")
	resp, err := bridge.Do(ctx, http.MethodGet, "/core/items/123", nil)
	bridge.Logout(ctx)

The token is taken from the CSRF cookie in the bridge's jar when present,
otherwise from the last X-XSRF-TOKEN (or DSPACE-XSRF-TOKEN) response header.
Every response is inspected for a rotated token.

Login is confirmed with up to two status checks. A login the upstream
rejects for its CSRF token is replayed exactly once with a fresh token.

States:

	Unauthenticated --token--> TokenAcquired --login confirmed--> Authenticated
	       ^                                                          |
	       +------------------ logout / session lost -----------------+
*/
package session

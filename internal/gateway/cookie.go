package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var errMalformedCookie = errors.New("malformed Set-Cookie")

// Attribute is one "; Key=Value" or "; Flag" element of a Set-Cookie line.
type Attribute struct {
	Key      string
	Value    string
	HasValue bool
}

// SetCookie is a Set-Cookie line split into its parts. Attribute order is
// preserved so a rewrite only touches what it means to touch.
type SetCookie struct {
	Name  string
	Value string
	Attrs []Attribute
}

// ParseSetCookie splits a raw Set-Cookie header value.
func ParseSetCookie(line string) (*SetCookie, error) {
	parts := strings.Split(line, ";")

	name, value, ok := strings.Cut(strings.TrimSpace(parts[0]), "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %q", errMalformedCookie, line)
	}

	sc := &SetCookie{Name: name, Value: strings.TrimSpace(value)}
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, hasValue := strings.Cut(part, "=")
		sc.Attrs = append(sc.Attrs, Attribute{
			Key:      strings.TrimSpace(key),
			Value:    strings.TrimSpace(val),
			HasValue: hasValue,
		})
	}
	return sc, nil
}

// Get returns the first attribute named key, ignoring case.
func (c *SetCookie) Get(key string) (Attribute, bool) {
	for _, a := range c.Attrs {
		if strings.EqualFold(a.Key, key) {
			return a, true
		}
	}
	return Attribute{}, false
}

// Has reports whether an attribute named key is present.
func (c *SetCookie) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set replaces the value of the first attribute named key and drops any
// duplicates, or appends the attribute if it is absent.
func (c *SetCookie) Set(key, value string) {
	replaced := false
	kept := c.Attrs[:0]
	for _, a := range c.Attrs {
		if strings.EqualFold(a.Key, key) {
			if replaced {
				continue
			}
			a.Value, a.HasValue = value, true
			replaced = true
		}
		kept = append(kept, a)
	}
	c.Attrs = kept
	if !replaced {
		c.Attrs = append(c.Attrs, Attribute{Key: key, Value: value, HasValue: true})
	}
}

// Flag appends a value-less attribute such as HttpOnly unless present.
func (c *SetCookie) Flag(key string) {
	if !c.Has(key) {
		c.Attrs = append(c.Attrs, Attribute{Key: key})
	}
}

// Remove drops every attribute named key.
func (c *SetCookie) Remove(key string) {
	kept := c.Attrs[:0]
	for _, a := range c.Attrs {
		if !strings.EqualFold(a.Key, key) {
			kept = append(kept, a)
		}
	}
	c.Attrs = kept
}

// String renders the cookie back into Set-Cookie syntax.
func (c *SetCookie) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	for _, a := range c.Attrs {
		b.WriteString("; ")
		b.WriteString(a.Key)
		if a.HasValue {
			b.WriteByte('=')
			b.WriteString(a.Value)
		}
	}
	return b.String()
}

// nameMatcher matches cookie names against exact names and glob patterns.
type nameMatcher struct {
	exact map[string]struct{}
	globs []string
}

func newNameMatcher(patterns []string) (*nameMatcher, error) {
	m := &nameMatcher{exact: make(map[string]struct{})}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.ContainsAny(p, "*?[{") {
			m.exact[p] = struct{}{}
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid cookie name pattern %q", p)
		}
		m.globs = append(m.globs, p)
	}
	return m, nil
}

func (m *nameMatcher) Match(name string) bool {
	if _, ok := m.exact[name]; ok {
		return true
	}
	for _, g := range m.globs {
		if ok, _ := doublestar.Match(g, name); ok {
			return true
		}
	}
	return false
}

// CookieRules rewrite upstream cookies so the browser stores them against
// the gateway instead of the upstream's origin and paths.
type CookieRules struct {
	// Prefix is the gateway's mount point, e.g. /proxy.
	Prefix string
	// UpstreamAPIPath is mapped onto Prefix, e.g. /server/api.
	UpstreamAPIPath string
	// UpstreamRootPath is mapped onto /, e.g. /server.
	UpstreamRootPath string

	httpOnly *nameMatcher
}

// NewCookieRules builds rules; httpOnly lists names or globs of cookies
// that must never be readable from page scripts.
func NewCookieRules(prefix, apiPath, rootPath string, httpOnly []string) (*CookieRules, error) {
	matcher, err := newNameMatcher(httpOnly)
	if err != nil {
		return nil, err
	}
	return &CookieRules{
		Prefix:           strings.TrimRight(prefix, "/"),
		UpstreamAPIPath:  strings.TrimRight(apiPath, "/"),
		UpstreamRootPath: strings.TrimRight(rootPath, "/"),
		httpOnly:         matcher,
	}, nil
}

// Rewrite applies the path, Secure, Domain, SameSite and HttpOnly rules.
func (r *CookieRules) Rewrite(c *SetCookie) {
	if p, ok := c.Get("Path"); ok {
		c.Set("Path", r.rewritePath(p.Value))
	}

	// The browser talks to the gateway, possibly over plain HTTP behind the edge.
	c.Remove("Secure")
	c.Remove("Domain")

	// SameSite=None without Secure is rejected by browsers.
	if ss, ok := c.Get("SameSite"); ok && strings.EqualFold(ss.Value, "None") {
		c.Set("SameSite", "Lax")
	}

	if r.httpOnly.Match(c.Name) {
		c.Flag("HttpOnly")
	}
}

func (r *CookieRules) rewritePath(p string) string {
	switch {
	case r.UpstreamAPIPath != "" && under(p, r.UpstreamAPIPath):
		rest := strings.TrimPrefix(p, r.UpstreamAPIPath)
		if r.Prefix == "" && rest == "" {
			return "/"
		}
		return r.Prefix + rest
	case r.UpstreamRootPath != "" && under(p, r.UpstreamRootPath):
		return "/" + strings.TrimPrefix(strings.TrimPrefix(p, r.UpstreamRootPath), "/")
	default:
		return p
	}
}

func under(p, base string) bool {
	return p == base || strings.HasPrefix(p, base+"/")
}

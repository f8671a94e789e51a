package gateway

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/scholargate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/scholargate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/scholargate/internal/upstream"
)

// Doer performs one upstream round trip.
type Doer interface {
	Do(ctx context.Context, req *upstream.Request) (*upstream.Response, error)
}

// Options configures a Gateway.
type Options struct {
	// Prefix is the route the gateway is mounted under, e.g. /proxy.
	Prefix string
	// UpstreamAPIPath and UpstreamRootPath are the upstream cookie paths
	// that map onto Prefix and / respectively.
	UpstreamAPIPath  string
	UpstreamRootPath string
	// AllowedCookies lists browser cookies (names or globs) sent upstream.
	AllowedCookies []string
	// HTTPOnlyCookies lists cookies (names or globs) forced to HttpOnly.
	HTTPOnlyCookies []string
	// CoerceNoContent answers upstream 204s with an empty 200.
	CoerceNoContent bool
	MaxBodyBytes    int64
	// Production hides error details from response bodies.
	Production bool

	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Gateway relays browser requests to the repository API and rewrites the
// session and CSRF material in both directions.
type Gateway struct {
	client          Doer
	prefix          string
	allowedCookies  *nameMatcher
	cookies         *CookieRules
	coerceNoContent bool
	maxBodyBytes    int64
	production      bool
	logger          *logging.Logger
	metrics         *monitoring.Metrics
}

// New creates a gateway that forwards through client.
func New(client Doer, opts Options) (*Gateway, error) {
	if client == nil {
		return nil, fmt.Errorf("gateway requires an upstream client")
	}

	allowed, err := newNameMatcher(opts.AllowedCookies)
	if err != nil {
		return nil, fmt.Errorf("invalid allowed cookie list: %w", err)
	}
	rules, err := NewCookieRules(opts.Prefix, opts.UpstreamAPIPath, opts.UpstreamRootPath, opts.HTTPOnlyCookies)
	if err != nil {
		return nil, fmt.Errorf("invalid http-only cookie list: %w", err)
	}

	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 20
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics()
	}

	return &Gateway{
		client:          client,
		prefix:          strings.TrimRight(opts.Prefix, "/"),
		allowedCookies:  allowed,
		cookies:         rules,
		coerceNoContent: opts.CoerceNoContent,
		maxBodyBytes:    opts.MaxBodyBytes,
		production:      opts.Production,
		logger:          opts.Logger.Named("gateway"),
		metrics:         opts.Metrics,
	}, nil
}

// Register mounts the gateway on every forwarded method under the prefix.
func (g *Gateway) Register(router gin.IRoutes) {
	route := g.prefix + "/*path"
	for _, method := range Methods {
		router.Handle(method, route, g.Handle)
	}
}

// Handle forwards one request. It never lets a failure escape: errors and
// panics alike become a 500 JSON body.
func (g *Gateway) Handle(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("Panic while proxying",
				zap.Any("panic", r),
				zap.String("path", c.Request.URL.Path),
			)
			g.abortWithError(c, "Unexpected proxy failure", fmt.Sprintf("%v\n%s", r, debug.Stack()))
		}
	}()

	subPath := c.Param("path")
	if subPath == "" {
		subPath = "/"
	}

	req, err := g.buildRequest(c, subPath)
	if err != nil {
		g.logger.Warn("Rejected inbound request", zap.String("path", subPath), zap.Error(err))
		g.abortWithError(c, "Failed to read request", err.Error())
		return
	}

	timer := monitoring.NewTimer(g.metrics, req.Method)
	resp, err := g.client.Do(c.Request.Context(), req)
	if err != nil {
		errorType, message := classify(err)
		timer.Fail(errorType)
		g.logger.Error("Upstream call failed",
			zap.String("method", req.Method),
			zap.String("path", subPath),
			zap.String("error_type", errorType),
			zap.Error(err),
		)
		g.abortWithError(c, message, err.Error())
		return
	}
	timer.Stop(resp.StatusCode)

	g.writeResponse(c, resp)
}

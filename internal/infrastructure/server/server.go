package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/scholargate/internal/api/middleware"
	"github.com/GriffinCanCode/scholargate/internal/gateway"
	"github.com/GriffinCanCode/scholargate/internal/infrastructure/config"
	"github.com/GriffinCanCode/scholargate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/scholargate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/scholargate/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/scholargate/internal/upstream"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	upstream   *upstream.Client
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
	instanceID string
	startedAt  time.Time
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string         `json:"status"`
	Instance string         `json:"instance"`
	Uptime   string         `json:"uptime"`
	Upstream UpstreamHealth `json:"upstream"`
}

// UpstreamHealth reports the circuit breaker guarding the upstream.
type UpstreamHealth struct {
	BaseURL             string `json:"base_url"`
	Breaker             string `json:"breaker"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	logger.Info("Initializing gateway",
		zap.String("port", cfg.Server.Port),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.String("prefix", cfg.Gateway.Prefix),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	upstreamClient, err := upstream.New(upstream.Options{
		BaseURL:         cfg.Upstream.BaseURL,
		Timeout:         cfg.Upstream.Timeout,
		BreakerFailures: cfg.Upstream.BreakerFailures,
		BreakerTimeout:  cfg.Upstream.BreakerTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
			metrics.SetBreakerState(name, to)
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}
	metrics.SetBreakerState("upstream", upstreamClient.BreakerState())

	gw, err := gateway.New(upstreamClient, gateway.Options{
		Prefix:           cfg.Gateway.Prefix,
		UpstreamAPIPath:  cfg.Gateway.UpstreamAPIPath,
		UpstreamRootPath: cfg.Gateway.UpstreamRootPath,
		AllowedCookies:   cfg.Gateway.AllowedCookies,
		HTTPOnlyCookies:  cfg.Gateway.HTTPOnlyCookies,
		CoerceNoContent:  cfg.Gateway.CoerceNoContent,
		MaxBodyBytes:     cfg.Gateway.MaxRequestBodyMiB << 20,
		Production:       cfg.IsProduction(),
		Logger:           logger,
		Metrics:          metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORS.AllowOrigins...)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	s := &Server{
		router:     router,
		upstream:   upstreamClient,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
		instanceID: uuid.NewString(),
		startedAt:  time.Now(),
	}

	// Register routes
	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	gw.Register(router)

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	state := s.upstream.BreakerState()
	status := "healthy"
	if state != resilience.StateClosed {
		status = "degraded"
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:   status,
		Instance: s.instanceID,
		Uptime:   time.Since(s.startedAt).Round(time.Second).String(),
		Upstream: UpstreamHealth{
			BaseURL:             s.config.Upstream.BaseURL,
			Breaker:             state.String(),
			ConsecutiveFailures: s.upstream.BreakerCounts().ConsecutiveFailures,
		},
	})
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Close flushes buffered logs.
func (s *Server) Close() error {
	_ = s.logger.Sync()
	return nil
}

package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/scholargate/internal/infrastructure/config"
)

func testConfig(upstreamURL string) *config.Config {
	cfg := config.Default()
	cfg.Upstream.BaseURL = upstreamURL + "/server/api"
	cfg.Upstream.Timeout = 2 * time.Second
	cfg.RateLimit.Enabled = false
	return cfg
}

func TestServerRoutes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/server/api/core/items", r.URL.Path)
		w.Header().Set("Content-Type", "application/hal+json")
		w.Header().Set("DSPACE-XSRF-TOKEN", "tok")
		_, _ = w.Write([]byte(`{"_embedded":{}}`))
	}))
	defer upstream.Close()

	srv, err := NewServer(testConfig(upstream.URL), nil)
	require.NoError(t, err)
	handler := srv.Handler()

	t.Run("proxy", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/proxy/core/items", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "tok", w.Header().Get("X-XSRF-TOKEN"))
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		assert.JSONEq(t, `{"_embedded":{}}`, w.Body.String())

		exposed := strings.ToLower(strings.Join(w.Header().Values("Access-Control-Expose-Headers"), ","))
		assert.Contains(t, exposed, "x-xsrf-token")
		assert.Contains(t, exposed, "x-request-id")
	})

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var body HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, "closed", body.Upstream.Breaker)
		assert.NotEmpty(t, body.Instance)
	})

	t.Run("metrics", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "gateway_upstream_calls_total")
		assert.Contains(t, w.Body.String(), `route="/proxy/*path"`)
	})
}

func TestServerReportsOpenBreaker(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	baseURL := upstream.URL
	upstream.Close()

	cfg := testConfig(baseURL)
	cfg.Upstream.BreakerFailures = 1
	cfg.Upstream.BreakerTimeout = time.Minute
	srv, err := NewServer(cfg, nil)
	require.NoError(t, err)
	handler := srv.Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/proxy/core", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "open", body.Upstream.Breaker)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `gateway_circuit_breaker_state{name="upstream"} 2`)
}

func TestNewServerRejectsBadUpstream(t *testing.T) {
	cfg := config.Default()
	cfg.Upstream.BaseURL = "ftp://repo.example.org"
	_, err := NewServer(cfg, nil)
	assert.Error(t, err)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg := testConfig("http://127.0.0.1:1")
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = strconv.Itoa(port)
	srv, err := NewServer(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + cfg.Server.Port + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.NoError(t, srv.Close())
}

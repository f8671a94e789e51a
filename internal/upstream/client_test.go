package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/scholargate/internal/infrastructure/resilience"
)

func TestNewValidatesBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"http", "http://localhost:8080/server/api", false},
		{"https with trailing slash", "https://repo.example.org/server/api/", false},
		{"ftp scheme", "ftp://repo.example.org/server/api", true},
		{"no host", "http:///server/api", true},
		{"garbage", "://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{BaseURL: tt.baseURL})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestURL(t *testing.T) {
	c, err := New(Options{BaseURL: "http://repo:8080/server/api/"})
	require.NoError(t, err)

	assert.Equal(t, "http://repo:8080/server/api/core/items", c.URL("/core/items", ""))
	assert.Equal(t, "http://repo:8080/server/api/core/items/", c.URL("/core/items/", ""))
	assert.Equal(t, "http://repo:8080/server/api/discover/search?query=a+b", c.URL("/discover/search", "query=a+b"))
	assert.Equal(t, "http://repo:8080/server/api/etc/passwd", c.URL("/../../etc/passwd", ""))
	assert.Equal(t, "http://repo:8080/server/api/", c.URL("", ""))
}

func TestDoDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/server/api/old" {
			http.Redirect(w, r, "/server/api/new", http.StatusFound)
			return
		}
		t.Errorf("redirect followed to %s", r.URL.Path)
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL + "/server/api"})
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/old"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/server/api/new", resp.Header.Get("Location"))
}

func TestDoKeepsNoCookies(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Empty(t, r.Header.Get("Cookie"), "call %d carried a cookie", calls)
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "leak", Path: "/"})
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		resp, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
		require.NoError(t, err)
		assert.Len(t, resp.Header.Values("Set-Cookie"), 1)
	}
	assert.Equal(t, 2, calls)
}

func TestDoSendsHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"a":1}`, string(body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "tok", r.Header.Get("X-XSRF-TOKEN"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("X-XSRF-TOKEN", "tok")

	resp, err := c.Do(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/core/items",
		Header: header,
		Body:   []byte(`{"a":1}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "created", string(resp.Body))
}

func TestErrorStatusesAreNotFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, BreakerFailures: 1})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		resp, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}
	assert.Equal(t, resilience.StateClosed, c.BreakerState())
}

func TestBreakerOpensOnTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	var transitions []resilience.State
	c, err := New(Options{
		BaseURL:         baseURL,
		BreakerFailures: 2,
		BreakerTimeout:  time.Minute,
		OnStateChange: func(_ string, _, to resilience.State) {
			transitions = append(transitions, to)
		},
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err = c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, resilience.StateOpen, c.BreakerState())
	assert.Equal(t, []resilience.State{resilience.StateOpen}, transitions)
}

func TestCanceledCallsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, BreakerFailures: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Do(ctx, &Request{Method: http.MethodGet, Path: "/"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, resilience.StateClosed, c.BreakerState())
}

func TestDoTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

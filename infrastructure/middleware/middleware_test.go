package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getsentry/relay-go/infrastructure/logging"
	"github.com/getsentry/relay-go/infrastructure/metrics"
)

func TestLoggingSetsTraceIDHeader(t *testing.T) {
	logger := logging.New("relay", "info", "json")
	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
}

func TestLoggingPreservesIncomingTraceID(t *testing.T) {
	logger := logging.New("relay", "info", "json")
	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "trace-xyz")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, "trace-xyz", rec.Header().Get("X-Trace-ID"))
}

func TestRecoveryRecoversPanicAndWritesErrorResponse(t *testing.T) {
	logger := logging.New("relay", "info", "json")
	rec := NewRecovery(logger)

	handler := rec.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	require.NotPanics(t, func() {
		handler.ServeHTTP(w, req)
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	cors := NewCORS(&CORSConfig{AllowedOrigins: []string{".sentry.io"}})
	handler := cors.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.sentry.io")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, "https://app.sentry.io", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSDefaultAllowsAllOrigins(t *testing.T) {
	cors := NewCORS(nil)
	handler := cors.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSHandlesPreflight(t *testing.T) {
	cors := NewCORS(nil)
	handler := cors.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not run for preflight")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestBodyLimitRejectsOversizedContentLength(t *testing.T) {
	bl := NewBodyLimit(10)
	handler := bl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.ContentLength = 100
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestBodyLimitAllowsWithinLimit(t *testing.T) {
	bl := NewBodyLimit(100)
	handler := bl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.ContentLength = 50
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsRecordsRoutePattern(t *testing.T) {
	m := metrics.NewWithRegistry("relay-test-mw", prometheus.NewRegistry())

	router := chi.NewRouter()
	router.Use(Metrics("relay", m))
	router.Get("/api/{project_id}/envelope/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/123/envelope/", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("relay", http.MethodGet, "/api/{project_id}/envelope/", "200")))
}

func TestIPLimiterBlocksAfterBurstExhausted(t *testing.T) {
	logger := logging.New("relay", "info", "json")
	rl := NewIPLimiter(1, 1, logger)

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:1234"

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req)
	assert.Equal(t, http.StatusOK, w1.Code)

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
}

func TestIPLimiterGetLimiterReusesPerKey(t *testing.T) {
	rl := NewIPLimiter(10, 20, nil)

	l1 := rl.getLimiter("k1")
	l2 := rl.getLimiter("k1")
	l3 := rl.getLimiter("k2")

	assert.Same(t, l1, l2)
	assert.NotSame(t, l1, l3)
	assert.Equal(t, 2, rl.LimiterCount())
}

func TestIPLimiterCleanupResetsWhenOversized(t *testing.T) {
	rl := NewIPLimiter(10, 20, nil)
	for i := 0; i < 5; i++ {
		rl.getLimiter(string(rune('a' + i)))
	}
	assert.Equal(t, 5, rl.LimiterCount())

	rl.Cleanup()
	assert.Equal(t, 5, rl.LimiterCount(), "cleanup below threshold should be a no-op")

	for i := 0; i <= 10000; i++ {
		rl.getLimiter(strconv.Itoa(i))
	}
	rl.Cleanup()
	assert.Equal(t, 0, rl.LimiterCount(), "cleanup above threshold should reset")
}

func TestIPLimiterStartCleanupStops(t *testing.T) {
	rl := NewIPLimiter(10, 20, nil)
	stop := rl.StartCleanup(10 * time.Millisecond)
	stop()
}

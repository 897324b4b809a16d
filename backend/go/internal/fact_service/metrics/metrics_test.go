package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveGeneration(t *testing.T) {
	m := New()
	m.ObserveGeneration("curated", false)
	m.ObserveGeneration("gemini", true)
	m.ObserveGeneration("gemini", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Generations.WithLabelValues("curated", "false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Generations.WithLabelValues("gemini", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHits))
}

func TestObserveFailure(t *testing.T) {
	m := New()
	m.ObserveFailure("huggingface", "timeout")
	m.ObserveFailure("huggingface", "timeout")
	m.ObserveFailure("gemini", "quota_exceeded")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BackendFailures.WithLabelValues("huggingface", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendFailures.WithLabelValues("gemini", "quota_exceeded")))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObservePersistFailure()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.PersistFailures))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PersistFailures))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/facts/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/facts/abc", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/facts/:id", "404")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.True(t, strings.Contains(string(body), "factverse_http_requests_total"))
}

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRender(t *testing.T) {
	m := New()

	m.ObserveRender("raster", 10*time.Millisecond, nil)
	m.ObserveRender("vector", 20*time.Millisecond, errors.New("boom"))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.RenderFailuresTotal.WithLabelValues("raster")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RenderFailuresTotal.WithLabelValues("vector")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RenderDurationSeconds))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncCertificates("generated")
		m.IncDownloads("pdf")
		m.IncArchives("completed")
		m.AddArchivesRemoved(3)
		m.ObserveRender("raster", time.Second, nil)
		m.IncRateLimitExceeded()
	})
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/certificates/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/certificates/"+id, nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("GET", "/certificates/:id", "204")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "certificates_api_requests_total"))
}

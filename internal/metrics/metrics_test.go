package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ObserveRoute(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.ObserveRoute("third", OutcomeFound, 2*time.Millisecond, 12.5)
	c.ObserveRoute("third", OutcomeFound, time.Millisecond, 3)
	c.ObserveRoute("third", OutcomeUnreachable, time.Millisecond, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.routesTotal.WithLabelValues("third", OutcomeFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.routesTotal.WithLabelValues("third", OutcomeUnreachable)))
	assert.Equal(t, 1, testutil.CollectAndCount(c.routeLength))
	assert.Equal(t, 1, testutil.CollectAndCount(c.routeDuration))
}

func TestCollector_ObserveImport(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.ObserveImport(true)
	c.ObserveImport(false)
	c.ObserveImport(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.importsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.importsTotal.WithLabelValues("failed")))
}

func TestCollector_Nil(t *testing.T) {
	t.Parallel()

	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveRoute("third", OutcomeFound, time.Millisecond, 1)
		c.ObserveImport(true)
	})
}

func TestCollector_Handler(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.ObserveRoute("third", OutcomeFound, time.Millisecond, 4)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `wayfinder_routes_total{outcome="found",plan="third"} 1`)
	assert.Contains(t, string(body), "wayfinder_route_length_bucket")
}

package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	m := New(Config{Namespace: "test"})

	m.ObserveSave("success", 20*time.Millisecond)
	m.ObserveSave("success", 10*time.Millisecond)
	m.ObserveSave("error", time.Millisecond)
	m.ObserveSearch("product", time.Millisecond, nil)
	m.ObserveSearch("product", time.Millisecond, errors.New("x"))
	m.ObserveRequest("GET", "", 404, time.Millisecond)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.saves.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.saves.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions))
	assert.Equal(t, 2, testutil.CollectAndCount(m.searchDuration))
}

func TestHandlerExposesNamespacedMetrics(t *testing.T) {
	m := New(Config{Namespace: "test"})
	m.ObserveSave("empty", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `test_product_detail_saves_total{outcome="empty"} 1`))
	assert.NotContains(t, string(body), "go_goroutines")
}

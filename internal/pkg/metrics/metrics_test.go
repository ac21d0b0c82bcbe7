package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.Observe("success", time.Now(), []string{"GENERAL", "PRODUCT_SPECIFIC"})
	m.Observe("success", time.Now(), []string{"GENERAL"})
	m.Observe("excessive_discount", time.Now(), []string{"GENERAL"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("excessive_discount")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DiscountsApplied.WithLabelValues("GENERAL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiscountsApplied.WithLabelValues("PRODUCT_SPECIFIC")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.DiscountsApplied))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Duration))
}

func TestCheckoutMetrics_NilIsNoop(t *testing.T) {
	var m *CheckoutMetrics
	assert.NotPanics(t, func() { m.Observe("success", time.Now(), nil) })
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCheckoutMetrics(reg).Observe("success", time.Now(), nil)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `digigoods_checkout_requests_total{outcome="success"} 1`)
}

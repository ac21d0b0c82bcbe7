package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "digigoods"

// CheckoutMetrics 记录结算接口的结果分布、耗时以及按类型统计的折扣使用次数。
type CheckoutMetrics struct {
	Requests         *prometheus.CounterVec
	Duration         prometheus.Histogram
	DiscountsApplied *prometheus.CounterVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	m := &CheckoutMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "requests_total",
			Help:      "Checkout attempts partitioned by outcome.",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "duration_seconds",
			Help:      "End-to-end checkout latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		DiscountsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "discounts_applied_total",
			Help:      "Discounts applied on successful checkouts, by discount type.",
		}, []string{"type"}),
	}
	reg.MustRegister(m.Requests, m.Duration, m.DiscountsApplied)
	return m
}

// Observe 记录一次结算。discountTypes 只在成功时计数，标签值只取折扣类型，不用折扣码。
func (m *CheckoutMetrics) Observe(outcome string, start time.Time, discountTypes []string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome).Inc()
	m.Duration.Observe(time.Since(start).Seconds())
	if outcome != "success" {
		return
	}
	for _, t := range discountTypes {
		m.DiscountsApplied.WithLabelValues(t).Inc()
	}
}

// Handler 暴露 gatherer 中的指标。
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

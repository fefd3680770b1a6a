package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AutoConfirmMetrics counts the outcome of unattended plan order confirmation.
type AutoConfirmMetrics struct {
	orders          *prometheus.CounterVec
	failures        *prometheus.CounterVec
	billingFailures prometheus.Counter
	eligible        prometheus.Gauge
}

func NewAutoConfirmMetrics(reg prometheus.Registerer) *AutoConfirmMetrics {
	if reg == nil {
		return &AutoConfirmMetrics{}
	}
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auto_confirm_orders_total",
		Help:      "Plan orders placed by the auto confirm run.",
	}, []string{"trigger"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auto_confirm_failures_total",
		Help:      "Subscribers the auto confirm run could not place an order for, by error code.",
	}, []string{"reason"})
	billingFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auto_confirm_billing_sync_failures_total",
		Help:      "Placed orders whose subscription price sync failed.",
	})
	eligible := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "auto_confirm_eligible_subscribers",
		Help:      "Subscribers selected by the latest auto confirm run.",
	})
	reg.MustRegister(orders, failures, billingFailures, eligible)
	return &AutoConfirmMetrics{
		orders:          orders,
		failures:        failures,
		billingFailures: billingFailures,
		eligible:        eligible,
	}
}

func (m *AutoConfirmMetrics) IncOrder(trigger string) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.WithLabelValues(normalizeLabel(trigger)).Inc()
}

func (m *AutoConfirmMetrics) IncFailure(reason string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *AutoConfirmMetrics) IncBillingFailure() {
	if m == nil || m.billingFailures == nil {
		return
	}
	m.billingFailures.Inc()
}

func (m *AutoConfirmMetrics) SetEligible(n int) {
	if m == nil || m.eligible == nil {
		return
	}
	m.eligible.Set(float64(n))
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NegotiationMetrics counts state machine operations by outcome.
type NegotiationMetrics struct {
	operations *prometheus.CounterVec
	checkouts  *prometheus.CounterVec
}

func NewNegotiationMetrics(reg prometheus.Registerer) *NegotiationMetrics {
	if reg == nil {
		return &NegotiationMetrics{}
	}
	m := &NegotiationMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negotiation_operations_total",
			Help:      "Negotiation operations by name and result code.",
		}, []string{"operation", "result"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negotiation_checkouts_total",
			Help:      "Negotiation checkouts by payment method and payment status.",
		}, []string{"payment_method", "payment_status"}),
	}
	reg.MustRegister(m.operations, m.checkouts)
	return m
}

// Observe records one operation. result is "ok" or an error code.
func (m *NegotiationMetrics) Observe(operation, result string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(result)).Inc()
}

func (m *NegotiationMetrics) ObserveCheckout(paymentMethod, paymentStatus string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(paymentMethod), normalizeLabel(paymentStatus)).Inc()
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics records outcomes of payment reconciliation, labelled by
// the path that triggered it (redirect or webhook).
type ReconcileMetrics struct {
	outcomes *prometheus.CounterVec
	webhooks *prometheus.CounterVec
	verify   *prometheus.HistogramVec
}

// NewReconcileMetrics registers the reconciliation metrics on the provided
// registerer. A nil registerer produces a no-op instance.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_outcomes_total",
		Help: "Reconciliation outcomes by trigger path and result.",
	}, []string{"path", "outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Webhook events by type and disposition.",
	}, []string{"event", "disposition"})
	verify := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "processor_verify_duration_seconds",
		Help:    "Duration of processor verification calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(outcomes, webhooks, verify)
	return &ReconcileMetrics{
		outcomes: outcomes,
		webhooks: webhooks,
		verify:   verify,
	}
}

// IncOutcome increments the outcome counter for a trigger path.
func (m *ReconcileMetrics) IncOutcome(path, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(path), normalizeLabel(outcome)).Inc()
}

// IncWebhook increments the webhook counter for an event type.
func (m *ReconcileMetrics) IncWebhook(event, disposition string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(event), normalizeLabel(disposition)).Inc()
}

// ObserveVerify records the duration of a processor verification call.
func (m *ReconcileMetrics) ObserveVerify(outcome string, duration time.Duration) {
	if m == nil || m.verify == nil {
		return
	}
	m.verify.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

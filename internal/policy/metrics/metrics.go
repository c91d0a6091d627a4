package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the policy engine.
type Metrics struct {
	PoliciesIssued  prometheus.Counter
	ClaimsPaid      prometheus.Counter
	ClaimsRefused   *prometheus.CounterVec
	InsuredExposure *prometheus.GaugeVec
	OpDuration      *prometheus.HistogramVec
}

// New creates the engine metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PoliciesIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "derisk_policy_issued_total",
			Help: "Policies issued",
		}),
		ClaimsPaid: f.NewCounter(prometheus.CounterOpts{
			Name: "derisk_policy_claims_paid_total",
			Help: "Claims settled with a payout",
		}),
		ClaimsRefused: f.NewCounterVec(prometheus.CounterOpts{
			Name: "derisk_policy_claims_refused_total",
			Help: "Claims refused by error code",
		}, []string{"code"}),
		InsuredExposure: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "derisk_policy_total_insured",
			Help: "Outstanding insured payout per subject",
		}, []string{"subject_id"}),
		OpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "derisk_policy_operation_duration_seconds",
			Help:    "Duration of buy and claim operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementIssued() {
	if m == nil {
		return
	}
	m.PoliciesIssued.Inc()
}

func (m *Metrics) IncrementPaid() {
	if m == nil {
		return
	}
	m.ClaimsPaid.Inc()
}

func (m *Metrics) IncrementRefused(code string) {
	if m == nil {
		return
	}
	m.ClaimsRefused.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveExposure(subject string, amount uint64) {
	if m == nil {
		return
	}
	m.InsuredExposure.WithLabelValues(subject).Set(float64(amount))
}

// ObserveDuration records how long operation took since start.
func (m *Metrics) ObserveDuration(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OpDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

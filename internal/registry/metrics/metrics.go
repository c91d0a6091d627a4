package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the score registry.
// Tracks score writes by source, proof outcomes, and verifier latency.
type Metrics struct {
	ScoreUpdates      *prometheus.CounterVec
	ProofRejections   prometheus.Counter
	StaleAttestations prometheus.Counter
	VerifyDuration    prometheus.Histogram
}

// New creates the registry metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ScoreUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "derisk_registry_score_updates_total",
			Help: "Score writes by source (manual or proof)",
		}, []string{"source"}),
		ProofRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "derisk_registry_proof_rejections_total",
			Help: "Attestations refused by the verifier",
		}),
		StaleAttestations: f.NewCounter(prometheus.CounterOpts{
			Name: "derisk_registry_stale_attestations_total",
			Help: "Accepted attestations whose journal is older than the stored one",
		}),
		VerifyDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "derisk_registry_verify_duration_seconds",
			Help:    "Duration of proof verifier calls",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

func (m *Metrics) IncrementScoreUpdate(source string) {
	if m == nil {
		return
	}
	m.ScoreUpdates.WithLabelValues(source).Inc()
}

func (m *Metrics) IncrementProofRejected() {
	if m == nil {
		return
	}
	m.ProofRejections.Inc()
}

func (m *Metrics) IncrementStaleAttestation() {
	if m == nil {
		return
	}
	m.StaleAttestations.Inc()
}

// ObserveVerify records the duration of a verifier call.
// Call with time.Now() taken before the call.
func (m *Metrics) ObserveVerify(start time.Time) {
	if m == nil {
		return
	}
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}

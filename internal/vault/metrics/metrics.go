package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"derisk/internal/vault/models"
)

// Metrics exposes the pooled ledger and the flow of premiums and payouts.
type Metrics struct {
	TotalAssets       prometheus.Gauge
	TotalShares       prometheus.Gauge
	PremiumsTotal     prometheus.Counter
	PayoutsTotal      prometheus.Counter
	OperationsRefused *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TotalAssets: f.NewGauge(prometheus.GaugeOpts{
			Name: "derisk_vault_total_assets",
			Help: "Pooled assets currently accounted by the vault",
		}),
		TotalShares: f.NewGauge(prometheus.GaugeOpts{
			Name: "derisk_vault_total_shares",
			Help: "Shares issued by the vault",
		}),
		PremiumsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "derisk_vault_premiums_deposited_total",
			Help: "Sum of premium amounts deposited",
		}),
		PayoutsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "derisk_vault_payouts_withdrawn_total",
			Help: "Sum of payout amounts withdrawn",
		}),
		OperationsRefused: f.NewCounterVec(prometheus.CounterOpts{
			Name: "derisk_vault_operations_refused_total",
			Help: "Vault operations refused, by operation and error code",
		}, []string{"operation", "code"}),
	}
}

// ObserveLedger publishes the committed ledger.
func (m *Metrics) ObserveLedger(l models.Ledger) {
	if m == nil {
		return
	}
	m.TotalAssets.Set(float64(l.TotalAssets))
	m.TotalShares.Set(float64(l.TotalShares))
}

func (m *Metrics) AddPremium(amount uint64) {
	if m == nil {
		return
	}
	m.PremiumsTotal.Add(float64(amount))
}

func (m *Metrics) AddPayout(amount uint64) {
	if m == nil {
		return
	}
	m.PayoutsTotal.Add(float64(amount))
}

func (m *Metrics) IncrementRefused(operation, code string) {
	if m == nil {
		return
	}
	m.OperationsRefused.WithLabelValues(operation, code).Inc()
}

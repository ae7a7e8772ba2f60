// Package metrics exposes Prometheus collectors for hub transactions.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	TransactionsTotal    *prometheus.CounterVec
	TransactionsInFlight *prometheus.GaugeVec
	WaitSeconds          *prometheus.HistogramVec
	AbortsTotal          *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		TransactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_transactions_total",
			Help: "total number of waited hub transactions",
		}, []string{"kind", "reason"}),
		TransactionsInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hub_transactions_in_flight",
			Help: "number of hub transactions currently being waited on",
		}, []string{"kind"}),
		WaitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hub_transaction_wait_seconds",
			Help:    "time spent waiting for hub transaction responses",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		AbortsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_test_aborts_total",
			Help: "total number of fatal test aborts raised by hub utilities",
		}, []string{"kind"}),
	}

	metrics.register(reg)
	return metrics
}

// register panics if reg already holds hub collectors, so every run needs
// its own registry.
func (m *Metrics) register(reg prometheus.Registerer) {
	reg.MustRegister(m.TransactionsTotal)
	reg.MustRegister(m.TransactionsInFlight)
	reg.MustRegister(m.WaitSeconds)
	reg.MustRegister(m.AbortsTotal)
}

package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine-level Prometheus collectors. Registered once at
// startup and shared by the escrow and withdrawal services.
type Metrics struct {
	ContractsCreated   prometheus.Counter
	ContractsSettled   *prometheus.CounterVec
	SettlementLatency  prometheus.Histogram
	RakeCollectedSOL   prometheus.Counter
	StaleExpired       prometheus.Counter
	WithdrawalsTotal   *prometheus.CounterVec
	OraclePriceFetches *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ContractsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "escrow_contracts_created_total",
				Help: "Total wager contracts created.",
			},
		),
		ContractsSettled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_contracts_settled_total",
				Help: "Total contract settlements by outcome.",
			},
			[]string{"outcome"},
		),
		SettlementLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "escrow_settlement_duration_seconds",
				Help:    "Settlement transaction duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		RakeCollectedSOL: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "escrow_rake_collected_sol_total",
				Help: "Cumulative rake collected, in SOL.",
			},
		),
		StaleExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "escrow_contracts_expired_total",
				Help: "Total stale contracts refunded by the sweep.",
			},
		),
		WithdrawalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "withdrawals_total",
				Help: "Total withdrawal requests by resolution.",
			},
			[]string{"resolution"},
		),
		OraclePriceFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_price_fetches_total",
				Help: "Total upstream price fetches by result.",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.ContractsCreated, m.ContractsSettled, m.SettlementLatency,
		m.RakeCollectedSOL, m.StaleExpired, m.WithdrawalsTotal,
		m.OraclePriceFetches,
	)
	return m
}

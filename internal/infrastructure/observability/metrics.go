package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Счётчик вызовов методов репозитория
	RepositoryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_calls_total",
			Help: "Total number of repository method calls",
		},
		[]string{"method", "status"},
	)

	RepositoryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_duration_seconds",
			Help:    "Duration of repository method calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_reconcile_total",
			Help: "Wallet reconciliations by entry point and outcome",
		},
		[]string{"source", "outcome"},
	)

	CreditedKobo = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_credited_kobo_total",
			Help: "Total amount credited to wallets, in kobo",
		},
	)
)

var registerOnce sync.Once

// InitMetrics registers collectors with the default registry. Safe to call
// more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RepositoryCalls, RepositoryDuration, ReconcileTotal, CreditedKobo)
	})
}

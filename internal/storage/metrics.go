package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_fallback_total",
			Help: "Remote storage operations that degraded to a fallback",
		},
		[]string{"backend", "op"},
	)

	deleteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storage_delete_failures_total",
			Help: "Best-effort storage deletes that failed",
		},
	)
)

package erp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_rpc_calls_total",
		Help: "Number of ERP RPC calls by model, method and outcome.",
	}, []string{"model", "method", "outcome"})

	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "erp_rpc_call_duration_seconds",
		Help:    "Duration of ERP RPC calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"model", "method"})
)

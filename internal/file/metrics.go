package file

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "files_operations_total",
			Help: "Lifecycle operations by name and outcome.",
		},
		[]string{"op", "result"},
	)

	compensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "files_compensations_total",
			Help: "Compensating object deletes issued after a failed metadata insert.",
		},
		[]string{"result"},
	)

	uploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "files_upload_bytes",
			Help:    "Size of stored uploads in bytes.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)
)

func observe(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	operationsTotal.WithLabelValues(op, result).Inc()
}

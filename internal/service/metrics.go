package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opAddItem     = "add_item"
	opUpdateItem  = "update_item"
	opDeleteItem  = "delete_item"
	opUpdateOrder = "update_order"
)

var (
	recalculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onlinesales_order_recalculations_total",
			Help: "Order aggregate recalculations by operation and result",
		},
		[]string{"operation", "result"},
	)

	recalculationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onlinesales_order_recalculation_duration_seconds",
			Help:    "Duration of the recalculation transaction in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func observeRecalculation(operation string, start time.Time, err error) {
	result := "committed"
	if err != nil {
		result = "failed"
	}
	recalculationsTotal.WithLabelValues(operation, result).Inc()
	recalculationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Collection cycle metrics
	collectionCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collection_cycles_total",
		Help: "Total collection cycles run",
	}, []string{
		"result", // ok, scan_failed
	})

	collectionCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "collection_cycle_duration_seconds",
		Help:    "Wall-clock duration of one collection cycle",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	dueBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collection_due_backlog",
		Help: "Due subscriptions returned by the most recent scan",
	})

	// Per-charge metrics
	chargesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collection_charges_total",
		Help: "Charge workflow outcomes",
	}, []string{
		"status", // reconciled, skipped_no_delegation, skipped_not_due, failed
	})

	chargeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collection_charge_duration_seconds",
		Help:    "End-to-end duration of one charge workflow",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{
		"status",
	})

	chargesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collection_charges_in_flight",
		Help: "Charge workflows currently executing",
	})
)

// RecordCycle records one completed collection cycle.
func RecordCycle(result string, duration time.Duration) {
	collectionCyclesTotal.WithLabelValues(result).Inc()
	collectionCycleDuration.Observe(duration.Seconds())
}

// SetDueBacklog records the size of the latest due set.
func SetDueBacklog(n int) {
	dueBacklog.Set(float64(n))
}

// RecordCharge records one finished charge workflow.
func RecordCharge(status string, duration time.Duration) {
	chargesTotal.WithLabelValues(status).Inc()
	chargeDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ChargeStarted marks a charge workflow entering execution; the returned
// function marks it done.
func ChargeStarted() func() {
	chargesInFlight.Inc()
	return chargesInFlight.Dec
}

// Package metrics exposes Prometheus instruments for the lifecycle engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SchedulerTicks counts scheduler loop iterations.
	SchedulerTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giveaway_scheduler_ticks_total",
		Help: "Number of scheduler ticks executed.",
	})

	// Activations counts giveaways moved from scheduled to active.
	Activations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giveaway_activations_total",
		Help: "Number of giveaways activated by the scheduler.",
	})

	// Completions counts completion attempts by outcome:
	// finished, cancelled, skipped, failed.
	Completions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giveaway_completions_total",
		Help: "Number of completion attempts by outcome.",
	}, []string{"outcome"})

	// DrawDuration observes the wall time of the completion transaction.
	DrawDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "giveaway_draw_duration_seconds",
		Help:    "Duration of the winner draw transaction.",
		Buckets: prometheus.DefBuckets,
	})

	// NotificationsSent counts winner notifications by result: sent, failed.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giveaway_notifications_total",
		Help: "Number of winner notification attempts by result.",
	}, []string{"result"})
)

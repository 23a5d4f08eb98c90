package tracker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	openedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "insights_service",
		Subsystem: "tracker",
		Name:      "intervals_opened_total",
		Help:      "Number of window-activity intervals opened.",
	})

	closedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "insights_service",
		Subsystem: "tracker",
		Name:      "intervals_closed_total",
		Help:      "Number of window-activity intervals closed.",
	})

	closedDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "insights_service",
		Subsystem: "tracker",
		Name:      "interval_duration_seconds",
		Help:      "Duration of closed window-activity intervals.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	lastObservationGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "insights_service",
		Subsystem: "tracker",
		Name:      "last_observation_timestamp_seconds",
		Help:      "Unix timestamp of the most recent window-change observation.",
	})
)

func init() {
	prometheus.MustRegister(openedCounter, closedCounter, closedDuration, lastObservationGauge)
}

func recordIntervalOpened(ts time.Time) {
	openedCounter.Inc()
	if !ts.IsZero() {
		lastObservationGauge.Set(float64(ts.Unix()))
	}
}

func recordIntervalClosed(durationSeconds int) {
	closedCounter.Inc()
	closedDuration.Observe(float64(durationSeconds))
}

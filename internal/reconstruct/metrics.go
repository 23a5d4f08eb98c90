package reconstruct

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsInsertedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "insights_service",
		Subsystem: "reconstruct",
		Name:      "sessions_inserted_total",
		Help:      "Number of derived sessions inserted by Pass A.",
	})

	sessionsDeletedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "insights_service",
		Subsystem: "reconstruct",
		Name:      "sessions_deleted_total",
		Help:      "Number of sessions removed by the short-session retention sweep.",
	})

	backfilledCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "insights_service",
		Subsystem: "reconstruct",
		Name:      "activities_backfilled_total",
		Help:      "Number of window-activity rows closed by Pass B.",
	})

	skippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insights_service",
		Subsystem: "reconstruct",
		Name:      "rows_skipped_total",
		Help:      "Rows skipped during reconstruction, labeled by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(sessionsInsertedCounter, sessionsDeletedCounter, backfilledCounter, skippedCounter)
}

func recordSessions(inserted, deleted int) {
	sessionsInsertedCounter.Add(float64(inserted))
	sessionsDeletedCounter.Add(float64(deleted))
}

func recordBackfill(affected int) {
	backfilledCounter.Add(float64(affected))
}

func recordSkipped(reason string) {
	skippedCounter.WithLabelValues(reason).Inc()
}

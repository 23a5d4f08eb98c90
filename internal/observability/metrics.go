// Package observability holds cross-cutting persistence watermark gauges.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	usageEventGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "insights_service",
		Subsystem: "persistence",
		Name:      "last_usage_event_timestamp_seconds",
		Help:      "Unix timestamp of the most recent usage event appended to the log.",
	})

	reconstructionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "insights_service",
		Subsystem: "persistence",
		Name:      "last_reconstruction_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed reconstruction run.",
	})
)

func init() {
	prometheus.MustRegister(usageEventGauge, reconstructionGauge)
}

// RecordUsageEventStored updates the usage-log watermark gauge.
func RecordUsageEventStored(ts time.Time) {
	if ts.IsZero() {
		return
	}
	usageEventGauge.Set(float64(ts.Unix()))
}

// RecordReconstructionRun updates the reconstruction watermark gauge.
func RecordReconstructionRun(ts time.Time) {
	if ts.IsZero() {
		return
	}
	reconstructionGauge.Set(float64(ts.Unix()))
}

// Package metrics exposes Prometheus instrumentation for report
// computation and upstream Toggl traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ReportsComputed counts successfully computed reports by kind.
var ReportsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tracklens",
	Subsystem: "reports",
	Name:      "computed_total",
	Help:      "Total reports computed, by report kind.",
}, []string{"kind"})

// ReportDuration observes end-to-end report computation time, upstream
// fetches included.
var ReportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "tracklens",
	Subsystem: "reports",
	Name:      "duration_seconds",
	Help:      "End-to-end report computation time in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"kind"})

// UpstreamRequests counts Toggl API responses by endpoint family and
// HTTP status.
var UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tracklens",
	Subsystem: "upstream",
	Name:      "requests_total",
	Help:      "Total Toggl API responses, by endpoint family and status code.",
}, []string{"endpoint", "status"})

// EntriesDropped counts raw report rows discarded during normalization
// because they carried no usable entity id.
var EntriesDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tracklens",
	Subsystem: "normalize",
	Name:      "entries_dropped_total",
	Help:      "Total raw report rows dropped during normalization.",
})

package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolutions counts redirect decisions by terminal outcome
// (resolved, not_found, expired, password_required, password_invalid).
var Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "linkpulse",
	Name:      "resolutions_total",
	Help:      "Short-link resolution decisions by outcome.",
}, []string{"outcome"})

// ClicksPublished counts click events handed to the stream after a resolve.
var ClicksPublished = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "linkpulse",
	Name:      "clicks_published_total",
	Help:      "Click events published to the ingestion stream.",
})

// ClicksApplied counts click events fully applied by the aggregator.
var ClicksApplied = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "linkpulse",
	Name:      "clicks_applied_total",
	Help:      "Click events applied to analytics rollups.",
})

// IngestErrors counts per-dimension ingestion/aggregation failures. A failing
// dimension never blocks the others, so these are the only trace it leaves.
var IngestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "linkpulse",
	Name:      "ingest_errors_total",
	Help:      "Per-dimension click ingestion failures.",
}, []string{"dimension"})

// Package metrics provides Prometheus metrics for the market monitor.
// Scrape these at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slabwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slabwatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Marketplace API metrics
	MarketplaceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slabwatch_marketplace_requests_total",
			Help: "Marketplace search requests by channel and result",
		},
		[]string{"channel", "result"}, // result: "ok", "auth_error", "transport_error", or HTTP status
	)

	// Scan metrics
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slabwatch_scan_duration_seconds",
			Help:    "Time taken to scan the full watchlist",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
	)

	ScanCardsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slabwatch_scan_cards_total",
			Help: "Total watchlist cards scanned",
		},
	)

	ScanCardFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slabwatch_scan_card_failures_total",
			Help: "Cards whose scan failed and was skipped",
		},
	)

	OpportunitiesFound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slabwatch_opportunities_found",
			Help: "Opportunities surfaced by the most recent scan",
		},
	)

	OpportunitiesByReason = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slabwatch_opportunities_by_reason_total",
			Help: "Opportunities counted by reason tier",
		},
		[]string{"reason"},
	)

	ItemsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slabwatch_items_rejected_total",
			Help: "Listings rejected during validation by rule",
		},
		[]string{"rule"}, // "price_band", "bundle", "premium", "graded_leak", "malformed"
	)

	// Historical collection metrics
	CollectionRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slabwatch_collection_run_duration_seconds",
			Help:    "Time taken for a full historical collection run",
			Buckets: []float64{30, 60, 120, 300, 600, 1800},
		},
	)

	SnapshotsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slabwatch_snapshots_stored_total",
			Help: "Price snapshots persisted across all collection runs",
		},
	)

	SnapshotsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slabwatch_snapshots_skipped_total",
			Help: "Cohorts skipped during collection by reason",
		},
		[]string{"reason"}, // "thin_sales", "search_error"
	)

	// Dismissal metrics
	DismissalsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slabwatch_dismissals_active",
			Help: "Dismissal records currently suppressing listings",
		},
	)
)

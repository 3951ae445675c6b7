// Package metrics provides Prometheus metrics for the feed proxies.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FeedReadsTotal is a counter of proxy reads by outcome.
	FeedReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_reads_total",
			Help: "Total number of reads served by feed proxies",
		},
		[]string{"feed", "method", "status"},
	)

	// FeedReadDuration is a histogram of proxy read latencies, backend call included.
	FeedReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_read_duration_seconds",
			Help:    "Duration of proxy reads including the backend call",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"feed", "method"},
	)

	// AggregatorRotationsTotal is a counter of aggregator changes.
	AggregatorRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_rotations_total",
			Help: "Total number of aggregator changes applied to a proxy",
		},
		[]string{"feed", "kind"},
	)

	// AggregatorProposalPending is a gauge of whether a proxy has a pending proposal.
	AggregatorProposalPending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aggregator_proposal_pending",
			Help: "Whether a proxy has a proposed aggregator awaiting confirmation (1=yes, 0=no)",
		},
		[]string{"feed"},
	)

	// WhitelistDenialsTotal is a counter of reads refused by the whitelist.
	WhitelistDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whitelist_denials_total",
			Help: "Total number of gated reads refused because the caller is not whitelisted",
		},
		[]string{"feed"},
	)

	// AuthorityErrorsTotal is a counter of failed delegated whitelist checks.
	AuthorityErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authority_errors_total",
			Help: "Total number of delegated whitelist checks that failed",
		},
		[]string{"feed"},
	)

	// OwnershipTransfersTotal is a counter of completed ownership transfers.
	OwnershipTransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ownership_transfers_total",
			Help: "Total number of completed ownership transfers",
		},
		[]string{"feed"},
	)

	// UnauthorizedMutationsTotal is a counter of rejected mutations.
	UnauthorizedMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unauthorized_mutations_total",
			Help: "Total number of mutations rejected because the caller lacked rights",
		},
		[]string{"feed", "operation"},
	)

	// BackendCallsTotal is a counter of contract calls made to aggregators and authorities.
	BackendCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_calls_total",
			Help: "Total number of contract calls to aggregators and authorities",
		},
		[]string{"contract", "method", "status"},
	)

	// BackendCallDuration is a histogram of contract call latencies.
	BackendCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_call_duration_seconds",
			Help:    "Contract call latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)

	// WebSocketClients is a gauge of connected event stream clients.
	WebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Number of connected event stream clients",
		},
	)
)

// Init registers all collectors with the default Prometheus registry.
func Init() {
	prometheus.MustRegister(
		FeedReadsTotal,
		FeedReadDuration,
		AggregatorRotationsTotal,
		AggregatorProposalPending,
		WhitelistDenialsTotal,
		AuthorityErrorsTotal,
		OwnershipTransfersTotal,
		UnauthorizedMutationsTotal,
		BackendCallsTotal,
		BackendCallDuration,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		WebSocketClients,
	)
}

// NewServer returns the HTTP server exposing metrics at path.
func NewServer(addr, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// RecordRead records a proxy read and its latency.
func RecordRead(feed, method, status string, duration time.Duration) {
	FeedReadsTotal.WithLabelValues(feed, method, status).Inc()
	FeedReadDuration.WithLabelValues(feed, method).Observe(duration.Seconds())
}

// RecordRotation records an aggregator change. kind is "confirm" or "set".
func RecordRotation(feed, kind string) {
	AggregatorRotationsTotal.WithLabelValues(feed, kind).Inc()
}

// RecordProposalPending records whether a proposal is awaiting confirmation.
func RecordProposalPending(feed string, pending bool) {
	val := 0.0
	if pending {
		val = 1.0
	}
	AggregatorProposalPending.WithLabelValues(feed).Set(val)
}

// RecordWhitelistDenial records a read refused by the whitelist.
func RecordWhitelistDenial(feed string) {
	WhitelistDenialsTotal.WithLabelValues(feed).Inc()
}

// RecordAuthorityError records a failed delegated whitelist check.
func RecordAuthorityError(feed string) {
	AuthorityErrorsTotal.WithLabelValues(feed).Inc()
}

// RecordOwnershipTransfer records a completed ownership transfer.
func RecordOwnershipTransfer(feed string) {
	OwnershipTransfersTotal.WithLabelValues(feed).Inc()
}

// RecordUnauthorized records a mutation rejected for lack of rights.
func RecordUnauthorized(feed, operation string) {
	UnauthorizedMutationsTotal.WithLabelValues(feed, operation).Inc()
}

// RecordBackendCall records a contract call.
func RecordBackendCall(contract, method, status string, duration time.Duration) {
	BackendCallsTotal.WithLabelValues(contract, method, status).Inc()
	BackendCallDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

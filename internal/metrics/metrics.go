// Package metrics wires up the Prometheus counters and histograms this
// service exposes on its internal metrics mux. Grounded on the one
// genuine prometheus/client_golang usage in the lineage
// (api/grpc/middleware/middleware.go), adapted from gRPC-call
// instrumentation to DNS-query and HTTP-update instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DNSQueries counts every handled UDP datagram by rcode.
	DNSQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "koppeln_dns_queries_total",
		Help: "Total DNS queries handled, by response code.",
	}, []string{"rcode"})

	// DNSResolveDuration measures time spent taking the store snapshot and
	// resolving one decoded query; decoding and encoding are not included.
	DNSResolveDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "koppeln_dns_resolve_duration_seconds",
		Help:    "Time spent resolving one DNS query.",
		Buckets: prometheus.DefBuckets,
	}, []string{"rcode"})

	// DNSRateLimited counts responses dropped or slipped by the response
	// rate limiter, which is consulted after the resolver has run.
	DNSRateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "koppeln_dns_rate_limited_total",
		Help: "DNS datagrams rate-limited, by action (drop/slip).",
	}, []string{"action"})

	// HTTPUpdates counts PUT /hostname requests by outcome status code.
	HTTPUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "koppeln_http_updates_total",
		Help: "PUT /hostname requests, by response status.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(DNSQueries, DNSResolveDuration, DNSRateLimited, HTTPUpdates)
}

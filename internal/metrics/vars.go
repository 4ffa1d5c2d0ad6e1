package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	QuotesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "router_quotes_total",
		Help: "Number of quote requests served",
	})

	QuoteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "router_quote_errors_total",
		Help: "Number of quote requests that found no route",
	})

	QuoteLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "router_quote_latency_seconds",
		Help:    "Time to resolve a best route",
		Buckets: prometheus.DefBuckets,
	})

	TradesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "router_trades_total",
		Help: "Executed trades by result",
	}, []string{"result"})

	TradeRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "router_trade_retries_total",
		Help: "Transient execution failures retried",
	})

	MEVDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "router_mev_detected_total",
		Help: "Advisory MEV threats detected",
	})

	VenueSkips = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "router_venue_skips_total",
		Help: "Per-venue quote attempts skipped as best-effort",
	})
)

// Registry builds the registry served by the metrics endpoint: the router
// collectors plus the standard Go runtime and process collectors. The router
// collectors stay off the global registry so library users keep a clean
// default Gatherer.
func Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		QuotesTotal,
		QuoteErrors,
		QuoteLatency,
		TradesTotal,
		TradeRetries,
		MEVDetected,
		VenueSkips,
	)
	return reg
}

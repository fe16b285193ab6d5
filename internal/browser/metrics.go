package browser

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalFetches counts fetch calls accepted by a session.
	TotalFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lzhbrowser_fetches_total",
		Help: "The total number of fetch calls started.",
	})
	// TotalFetchSuccesses counts fetch calls that returned rendered HTML.
	TotalFetchSuccesses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lzhbrowser_fetch_successes_total",
		Help: "The total number of fetch calls that returned content.",
	})
	// TotalAttemptTimeouts counts attempts lost to navigation or selector timeouts.
	TotalAttemptTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lzhbrowser_attempt_timeouts_total",
		Help: "The total number of fetch attempts that timed out.",
	})
	// TotalAttemptErrors counts attempts lost to non-timeout failures.
	TotalAttemptErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lzhbrowser_attempt_errors_total",
		Help: "The total number of fetch attempts that failed outright.",
	})
	// TotalProxiedRoutes counts fetch calls routed through the proxied environment.
	TotalProxiedRoutes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lzhbrowser_proxied_routes_total",
		Help: "The total number of fetch calls sent through the proxy.",
	})
	// OpenPages tracks pages currently open, including those awaiting deferred close.
	OpenPages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lzhbrowser_open_pages",
		Help: "The number of browser pages currently open.",
	})
)

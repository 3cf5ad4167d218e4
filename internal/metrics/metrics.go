// Package metrics holds the Prometheus collectors for the site. They are
// registered once on the default registry and served at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequests counts requests by method, chi route pattern and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblog_http_requests_total",
		Help: "Total HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	// HTTPDuration records request latency by method and route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "microblog_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "microblog_posts_created_total",
		Help: "Total posts created",
	})

	// LikeToggles counts toggles by outcome: "liked" or "unliked".
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblog_like_toggles_total",
		Help: "Total like toggles by resulting state",
	}, []string{"action"})

	// AccountsDeleted counts removals by reason: "self" or "admin".
	AccountsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblog_accounts_deleted_total",
		Help: "Total accounts deleted by reason",
	}, []string{"reason"})

	AvatarsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "microblog_avatars_generated_total",
		Help: "Total letter avatars rendered",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

package observability

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by command and keyspace (post, place, rl, ...).
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantspack_redis_error_rate_total",
		Help: "Total number of Redis errors by command and keyspace",
	}, []string{"operation", "keyspace"})

	// DatabaseQueryLatency records database query latency by statement type.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plantspack_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plantspack_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantspack_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantspack_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// FeedRequests counts feed requests by sort and outcome (ok, degraded).
	FeedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantspack_feed_requests_total",
		Help: "Feed requests by sort and outcome",
	}, []string{"sort", "outcome"})

	// ContentSafetyDecisions counts classifier verdicts (allowed, blocked, error, disabled).
	ContentSafetyDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantspack_content_safety_decisions_total",
		Help: "Content safety classifier decisions",
	}, []string{"decision"})

	// MediaUploads counts media uploads by bucket and result.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantspack_media_uploads_total",
		Help: "Media uploads by bucket and result",
	}, []string{"bucket", "result"})
)

// ObserveQuery records a query latency labelled by its leading SQL verb.
func ObserveQuery(sql string, elapsed time.Duration) {
	DatabaseQueryLatency.WithLabelValues(sqlVerb(sql)).Observe(elapsed.Seconds())
}

func sqlVerb(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexAny(sql, " \n\t"); i > 0 {
		sql = sql[:i]
	}
	switch verb := strings.ToLower(sql); verb {
	case "select", "insert", "update", "delete", "with":
		return verb
	default:
		return "other"
	}
}

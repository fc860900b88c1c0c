package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flightmap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flightmap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flightmap",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Geocoding metrics
	GeocodeLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flightmap",
		Subsystem: "geocoder",
		Name:      "lookups_total",
		Help:      "External geocoding lookups by outcome",
	}, []string{"result"})

	GeocodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "flightmap",
		Subsystem: "geocoder",
		Name:      "lookup_duration_seconds",
		Help:      "Duration of external geocoding lookups",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flightmap",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total geocode cache hits",
	}, []string{"tier"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flightmap",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total geocode cache misses",
	}, []string{"tier"})

	// Route metrics
	RoutesResolved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flightmap",
		Subsystem: "routes",
		Name:      "resolved_total",
		Help:      "Flight legs resolved into routes",
	})

	RoutesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flightmap",
		Subsystem: "routes",
		Name:      "dropped_total",
		Help:      "Flight legs dropped because an endpoint did not geocode",
	})

	StaleWritesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flightmap",
		Subsystem: "routes",
		Name:      "stale_writes_discarded_total",
		Help:      "Resolved routes discarded because their session generation was superseded",
	})

	// Animation metrics
	AnimationTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flightmap",
		Subsystem: "animation",
		Name:      "ticks_total",
		Help:      "Animation ticks processed",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "flightmap",
		Subsystem: "animation",
		Name:      "active_sessions",
		Help:      "Currently mounted map sessions",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "flightmap",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "flightmap",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "flightmap",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "flightmap",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
func UpdateDBPoolMetrics(stat interface{}) {
	// Accepts *pgxpool.Stat without importing pgxpool here.
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}

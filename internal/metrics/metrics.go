package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/vcpkg-mcp/internal/cache"
)

const namespace = "vcpkg_mcp"

// Outcome labels for tool calls
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the server's Prometheus collectors
type Metrics struct {
	toolCalls      *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	githubRequests *prometheus.CounterVec
	githubDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. c may be nil, in which case no
// cache collectors are registered.
func New(reg prometheus.Registerer, c *cache.Cache) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of MCP tool calls",
		}, []string{"tool", "outcome"}),
		toolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of MCP tool calls in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"tool"}),
		githubRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "github_requests_total",
			Help:      "Total number of GitHub API requests",
		}, []string{"endpoint", "status"}),
		githubDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "github_request_duration_seconds",
			Help:      "Duration of GitHub API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}

	if c != nil {
		registerCache(factory, c)
	}
	return m
}

func registerCache(factory promauto.Factory, c *cache.Cache) {
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Total number of response cache hits",
	}, func() float64 { return float64(c.Stats().Hits) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Total number of response cache misses",
	}, func() float64 { return float64(c.Stats().Misses) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_evictions_total",
		Help:      "Total number of entries evicted to stay under the size limit",
	}, func() float64 { return float64(c.Stats().Evictions) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Current number of cache entries",
	}, func() float64 { return float64(c.Stats().Entries) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_size_bytes",
		Help:      "Approximate size of cached values in bytes",
	}, func() float64 { return float64(c.Stats().ApproxSizeBytes) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_hit_rate",
		Help:      "Cache hit rate (0.0 to 1.0)",
	}, func() float64 { return c.Stats().HitRate() })
}

// ObserveTool records one tool call
func (m *Metrics) ObserveTool(tool string, err error, d time.Duration) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveGitHub records one GitHub round trip. Its signature matches
// github.RequestObserver; status 0 is reported as "error".
func (m *Metrics) ObserveGitHub(endpoint string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.githubRequests.WithLabelValues(endpoint, label).Inc()
	m.githubDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// Handler serves the gatherer's metrics in the Prometheus text format
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

// Serve runs the metrics endpoint on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger log.Logger) error {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           Handler(g),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		level.Info(logger).Log("msg", "starting metrics server", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			level.Error(logger).Log("msg", "metrics server shutdown failed", "err", err)
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

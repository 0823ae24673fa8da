// Package metrics exposes Prometheus counters/histograms for the
// ingestion-analysis pipeline: job-run outcomes, collector throughput,
// analyzer alert counts, and upstream rate-limit pressure. Built as a
// struct of pre-registered prometheus instruments handed out through
// fx, with its own registry and lifecycle-managed HTTP handler.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/config"
)

// Module provides the Prometheus registry, the pipeline's Metrics
// instrument set, and its HTTP exposition server.
var Module = fx.Options(
	fx.Provide(NewRegistry),
	fx.Provide(NewMetrics),
	fx.Invoke(RegisterHandler),
)

// NewRegistry creates the process's Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Metrics bundles every counter/histogram the scheduler, collectors and
// analyzers report into, so each component takes one dependency instead
// of wiring individual prometheus.Collectors.
type Metrics struct {
	JobRuns               *prometheus.CounterVec
	JobDuration           *prometheus.HistogramVec
	CollectorItems        *prometheus.CounterVec
	AnalyzerAlerts        *prometheus.CounterVec
	UpstreamRequests      *prometheus.CounterVec
	UpstreamRateLimitHits prometheus.Counter
	RetentionRowsDeleted  *prometheus.CounterVec
}

// NewMetrics constructs and registers the Metrics instrument set.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketlens_job_runs_total",
			Help: "Scheduled job invocations by job id and terminal status",
		}, []string{"job", "status"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketlens_job_duration_seconds",
			Help:    "Wall-clock duration of a scheduled job invocation",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4m
		}, []string{"job"}),
		CollectorItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketlens_collector_items_total",
			Help: "Records processed by a collector (markets upserted, books fetched, trades inserted)",
		}, []string{"collector", "outcome"}),
		AnalyzerAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketlens_analyzer_alerts_total",
			Help: "Alerts created, by analyzer",
		}, []string{"analyzer"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketlens_upstream_requests_total",
			Help: "Upstream HTTP requests by error kind (empty label on success)",
		}, []string{"kind"}),
		UpstreamRateLimitHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketlens_upstream_ratelimit_hits_total",
			Help: "Count of upstream rate-limit events: 429 responses plus local outbound-throttle waits",
		}),
		RetentionRowsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketlens_retention_rows_deleted_total",
			Help: "Rows removed by the retention sweeper, by table",
		}, []string{"table"}),
	}

	registry.MustRegister(
		m.JobRuns,
		m.JobDuration,
		m.CollectorItems,
		m.AnalyzerAlerts,
		m.UpstreamRequests,
		m.UpstreamRateLimitHits,
		m.RetentionRowsDeleted,
	)
	return m
}

// RegisterHandler starts the /metrics HTTP exposition server on its own
// lifecycle-managed *http.Server.
func RegisterHandler(lc fx.Lifecycle, registry *prometheus.Registry, cfg *config.Config, logger *zap.Logger) {
	if !cfg.Metrics.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting metrics server", zap.String("addr", server.Addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("metrics server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping metrics server")
			return server.Shutdown(ctx)
		},
	})
}

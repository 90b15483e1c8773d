package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/yungbote/ontorelease/internal/platform/envutil"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	releasesStarted  *prometheus.CounterVec
	releasesFinished *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	stepTotal        *prometheus.CounterVec
	diagnostics      *prometheus.CounterVec
	toolFailures     *prometheus.CounterVec
	releaseQueue     *prometheus.GaugeVec
	dbStats          *prometheus.GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current is nil until Init ran with metrics enabled; every method is nil-safe.
func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	return envutil.Duration("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("prometheus metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ontorelease_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ontorelease_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ontorelease_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		releasesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ontorelease_releases_started_total",
			Help: "Releases started by repository.",
		}, []string{"repository"}),
		releasesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ontorelease_releases_finished_total",
			Help: "Releases reaching a terminal or waiting state by repository/state.",
		}, []string{"repository", "state"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ontorelease_step_duration_seconds",
			Help:    "Release step duration in seconds by step/outcome.",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800},
		}, []string{"step", "outcome"}),
		stepTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ontorelease_steps_total",
			Help: "Release step executions by step/outcome.",
		}, []string{"step", "outcome"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ontorelease_diagnostics_total",
			Help: "Diagnostics reported by step/kind/severity.",
		}, []string{"step", "kind", "severity"}),
		toolFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ontorelease_tool_failures_total",
			Help: "External build tool failures by command.",
		}, []string{"command"}),
		releaseQueue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ontorelease_releases",
			Help: "Releases by state.",
		}, []string{"state"}),
		dbStats: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ontorelease_db_pool",
			Help: "Database connection pool stats.",
		}, []string{"stat"}),
	}
	reg.MustRegister(
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.releasesStarted, m.releasesFinished, m.stepDuration, m.stepTotal,
		m.diagnostics, m.toolFailures, m.releaseQueue, m.dbStats,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if status == "" {
		status = "0"
	}
	route = orUnknown(route)
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncReleaseStarted(repository string) {
	if m == nil {
		return
	}
	m.releasesStarted.WithLabelValues(orUnknown(repository)).Inc()
}

func (m *Metrics) IncReleaseFinished(repository, state string) {
	if m == nil {
		return
	}
	m.releasesFinished.WithLabelValues(orUnknown(repository), orUnknown(state)).Inc()
}

// ObserveStep records one step execution. outcome is continue, paused,
// failed or canceled.
func (m *Metrics) ObserveStep(step, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	step, outcome = orUnknown(step), orUnknown(outcome)
	m.stepTotal.WithLabelValues(step, outcome).Inc()
	if dur > 0 {
		m.stepDuration.WithLabelValues(step, outcome).Observe(dur.Seconds())
	}
}

func (m *Metrics) AddDiagnostics(step, kind, severity string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.diagnostics.WithLabelValues(orUnknown(step), orUnknown(kind), orUnknown(severity)).Add(float64(n))
}

func (m *Metrics) IncToolFailure(command string) {
	if m == nil {
		return
	}
	m.toolFailures.WithLabelValues(orUnknown(command)).Inc()
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.dbStats.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.dbStats.WithLabelValues("idle").Set(float64(stats.Idle))
				m.dbStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.dbStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
			}
		}
	}()
}

// StartReleaseCollector polls release counts per state.
func (m *Metrics) StartReleaseCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var rows []struct {
					State string
					Count int64
				}
				err := db.WithContext(ctx).Table("release").
					Select("state, count(*) as count").
					Group("state").
					Scan(&rows).Error
				if err != nil {
					if log != nil {
						log.Warn("metrics: release counts unavailable", "error", err)
					}
					continue
				}
				m.releaseQueue.Reset()
				for _, r := range rows {
					m.releaseQueue.WithLabelValues(r.State).Set(float64(r.Count))
				}
			}
		}
	}()
}

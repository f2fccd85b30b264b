// Package metrics 扫描过程的 Prometheus 指标。Recorder 为 nil 时所有方法均为空操作。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stockradar"

type Recorder struct {
	registry *prometheus.Registry

	cacheLookups  *prometheus.CounterVec
	taskOutcomes  *prometheus.CounterVec
	reasonerCalls *prometheus.CounterVec
	scanDuration  *prometheus.HistogramVec
	scanResults   *prometheus.GaugeVec
	snapshotAge   prometheus.Gauge
}

// New 创建独立 registry 上的指标集合，避免与进程默认 registry 冲突。
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
		taskOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_outcomes_total",
				Help:      "Worker task outcomes by stage and status",
			},
			[]string{"stage", "status"},
		),
		reasonerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reasoner_calls_total",
				Help:      "Reasoning service calls by result",
			},
			[]string{"result"},
		),
		scanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Scan wall time by mode",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 15, 30, 60, 120},
			},
			[]string{"mode"},
		),
		scanResults: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scan_results",
				Help:      "Records returned by the last scan of each mode",
			},
			[]string{"mode"},
		),
		snapshotAge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_age_seconds",
				Help:      "Age of the cached market snapshot",
			},
		),
	}
	r.registry.MustRegister(
		r.cacheLookups,
		r.taskOutcomes,
		r.reasonerCalls,
		r.scanDuration,
		r.scanResults,
		r.snapshotAge,
	)
	return r
}

func (r *Recorder) CacheLookup(cache string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(cache, result).Inc()
}

// TaskOutcome stage 如 "ma"、"enrich"、"tail"；status 为 ok/empty/timeout/failed。
func (r *Recorder) TaskOutcome(stage, status string) {
	if r == nil {
		return
	}
	r.taskOutcomes.WithLabelValues(stage, status).Inc()
}

func (r *Recorder) ReasonerCall(result string) {
	if r == nil {
		return
	}
	r.reasonerCalls.WithLabelValues(result).Inc()
}

func (r *Recorder) ScanDone(mode string, elapsed time.Duration, n int) {
	if r == nil {
		return
	}
	r.scanDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	r.scanResults.WithLabelValues(mode).Set(float64(n))
}

func (r *Recorder) SnapshotAge(seconds float64) {
	if r == nil {
		return
	}
	r.snapshotAge.Set(seconds)
}

// Handler 暴露 /metrics。
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

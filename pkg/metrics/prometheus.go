package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "polychannel"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	assets       *prometheus.CounterVec
	stageLatency *prometheus.HistogramVec
	trials       *prometheus.HistogramVec
	optimizer    *prometheus.CounterVec
	cache        *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	signals      *prometheus.CounterVec
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
}

// New registers the engine collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		assets: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assets_total",
				Help:      "Assets processed, by outcome",
			},
			[]string{"status"},
		),
		stageLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		trials: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "optimizer_trials",
				Help:      "Trials evaluated per asset",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"state"},
		),
		optimizer: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optimizer_runs_total",
				Help:      "Optimizer terminal states",
			},
			[]string{"state"},
		),
		cache: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Candle cache lookups, by result",
			},
			[]string{"result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"kind"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_total",
				Help:      "Signals emitted, by type",
			},
			[]string{"signal"},
		),
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Analysis runs, by status",
			},
			[]string{"status"},
		),
		runDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of a full analysis run",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
			},
		),
	}
}

func (r *Recorder) RecordAsset(status string) {
	r.assets.WithLabelValues(status).Inc()
}

func (r *Recorder) RecordStageLatency(stage string, seconds float64) {
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

func (r *Recorder) RecordTrials(state string, trials int) {
	r.optimizer.WithLabelValues(state).Inc()
	r.trials.WithLabelValues(state).Observe(float64(trials))
}

func (r *Recorder) RecordCache(result string) {
	r.cache.WithLabelValues(result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordSignal(signal string) {
	r.signals.WithLabelValues(signal).Inc()
}

// RecordRun counts a finished run; only completed runs feed the duration histogram.
func (r *Recorder) RecordRun(status string, seconds float64) {
	r.runs.WithLabelValues(status).Inc()
	if status == "completed" {
		r.runDuration.Observe(seconds)
	}
}

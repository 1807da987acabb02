package repository

import (
	"context"
	"time"

	"PolyChannel/internal/domain/models"
)

// CandleSource fetches raw OHLCV history from an upstream provider.
// Implementations return errs.ErrRateLimited when throttled so the cache can back off.
type CandleSource interface {
	Name() string
	FetchCandles(ctx context.Context, symbol string, interval Interval, from, to time.Time) ([]models.Candle, error)
}

// UniverseSource ranks tradable symbols, used for top-N selection.
type UniverseSource interface {
	TopSymbolsByVolume(ctx context.Context, n int) ([]string, error)
}

// RunSink persists a finished run into the downstream tables.
type RunSink interface {
	SaveRun(ctx context.Context, run *models.AnalysisRun) error
}

// RunPublisher announces a finished, exported run.
type RunPublisher interface {
	PublishRunCompleted(ctx context.Context, run *models.AnalysisRun, manifestPath string) error
	Close() error
}

// Clock abstracts time for cache expiry and run stamping.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Metrics records engine activity.
type Metrics interface {
	RecordAsset(status string)
	RecordStageLatency(stage string, seconds float64)
	RecordTrials(state string, trials int)
	RecordCache(result string)
	RecordError(kind string)
	RecordSignal(signal string)
	RecordRun(status string, seconds float64)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordAsset(string)                 {}
func (NopMetrics) RecordStageLatency(string, float64) {}
func (NopMetrics) RecordTrials(string, int)           {}
func (NopMetrics) RecordCache(string)                 {}
func (NopMetrics) RecordError(string)                 {}
func (NopMetrics) RecordSignal(string)                {}
func (NopMetrics) RecordRun(string, float64)          {}

// BundleWriter writes a frozen run to durable storage, all or nothing.
type BundleWriter interface {
	Export(ctx context.Context, run *models.AnalysisRun) (*models.Manifest, error)
}

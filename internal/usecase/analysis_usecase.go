package usecase

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	drepo "PolyChannel/internal/domain/repository"
	applogger "PolyChannel/pkg/logger"
)

// RunRequest selects the assets and options for one batch.
type RunRequest struct {
	Symbols []string
	TopN    int
	Config  RunConfig
}

// RunOutcome is a finished, exported run.
type RunOutcome struct {
	Run      *models.AnalysisRun
	Manifest *models.Manifest
}

// RunStatus is the last known outcome, served on the health endpoint.
type RunStatus struct {
	RunID      string    `json:"run_id,omitempty"`
	Status     string    `json:"status"`
	Analyzed   int       `json:"analyzed"`
	Failed     int       `json:"failed"`
	Bundle     string    `json:"bundle,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// AnalysisUseCase selects symbols, runs the aggregator, exports the bundle and then
// feeds the optional downstream sinks.
type AnalysisUseCase struct {
	aggregator *RunAggregator
	exporter   drepo.BundleWriter
	universe   drepo.UniverseSource
	sink       drepo.RunSink
	publisher  drepo.RunPublisher
	clock      drepo.Clock
	metrics    drepo.Metrics
	l          *applogger.Logger

	mu   sync.RWMutex
	last RunStatus
}

type AnalysisOption func(*AnalysisUseCase)

func WithUniverse(u drepo.UniverseSource) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.universe = u }
}

func WithRunSink(s drepo.RunSink) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.sink = s }
}

func WithRunPublisher(p drepo.RunPublisher) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.publisher = p }
}

func WithMetrics(m drepo.Metrics) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.metrics = m }
}

func WithLogger(l *applogger.Logger) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.l = l.Component("analysis") }
}

func NewAnalysisUseCase(aggregator *RunAggregator, exporter drepo.BundleWriter, opts ...AnalysisOption) *AnalysisUseCase {
	uc := &AnalysisUseCase{
		aggregator: aggregator,
		exporter:   exporter,
		clock:      drepo.SystemClock{},
		metrics:    drepo.NopMetrics{},
		l:          applogger.Nop(),
		last:       RunStatus{Status: "idle"},
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Execute runs one batch end to end. Sink and publisher failures are logged only.
func (uc *AnalysisUseCase) Execute(ctx context.Context, req RunRequest) (*RunOutcome, error) {
	uc.setStatus(RunStatus{Status: "running"})

	symbols, err := SelectSymbols(ctx, req.Symbols, req.TopN, uc.universe)
	if err != nil {
		uc.fail("", err)
		return nil, err
	}

	run, err := uc.aggregator.Run(ctx, symbols, req.Config)
	if err != nil {
		uc.fail("", err)
		return nil, err
	}

	manifest, err := uc.exporter.Export(ctx, run)
	if err != nil {
		uc.metrics.RecordError(errs.KindOf(err))
		uc.fail(run.RunID, err)
		return nil, err
	}

	uc.deliver(ctx, run, manifest)

	uc.setStatus(RunStatus{
		RunID:      run.RunID,
		Status:     "completed",
		Analyzed:   run.Summary.TotalAssetsAnalyzed,
		Failed:     run.Summary.TotalAssetsFailed,
		Bundle:     manifest.Directory,
		FinishedAt: uc.clock.Now(),
	})
	return &RunOutcome{Run: run, Manifest: manifest}, nil
}

func (uc *AnalysisUseCase) deliver(ctx context.Context, run *models.AnalysisRun, manifest *models.Manifest) {
	if uc.sink != nil {
		if err := uc.sink.SaveRun(ctx, run); err != nil {
			uc.metrics.RecordError("sink")
			uc.l.Error("run sink failed", applogger.String("run_id", run.RunID), applogger.Error(err))
		}
	}
	if uc.publisher != nil {
		path := filepath.Join(manifest.Directory, "manifest_"+run.RunID+".json")
		if err := uc.publisher.PublishRunCompleted(ctx, run, path); err != nil {
			uc.metrics.RecordError("publish")
			uc.l.Error("run event publish failed", applogger.String("run_id", run.RunID), applogger.Error(err))
		}
	}
}

// Status returns the outcome of the most recent Execute.
func (uc *AnalysisUseCase) Status() RunStatus {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.last
}

func (uc *AnalysisUseCase) fail(runID string, err error) {
	uc.l.Error("run failed", applogger.String("run_id", runID), applogger.Error(err))
	uc.setStatus(RunStatus{RunID: runID, Status: "failed", Error: err.Error(), FinishedAt: uc.clock.Now()})
}

func (uc *AnalysisUseCase) setStatus(s RunStatus) {
	uc.mu.Lock()
	uc.last = s
	uc.mu.Unlock()
}

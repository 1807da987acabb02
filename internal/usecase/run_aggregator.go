package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	drepo "PolyChannel/internal/domain/repository"
	domsvc "PolyChannel/internal/domain/service"
	applogger "PolyChannel/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// RunAggregator fans symbols out to a bounded worker pool and merges the results
// into one frozen AnalysisRun. It is the only writer of the run.
type RunAggregator struct {
	pipeline    AssetProcessor
	correlation domsvc.CorrelationAnalyzer
	clock       drepo.Clock
	metrics     drepo.Metrics
	l           *applogger.Logger
}

func NewRunAggregator(pipeline AssetProcessor, correlation domsvc.CorrelationAnalyzer, clock drepo.Clock, metrics drepo.Metrics, l *applogger.Logger) *RunAggregator {
	if clock == nil {
		clock = drepo.SystemClock{}
	}
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &RunAggregator{
		pipeline:    pipeline,
		correlation: correlation,
		clock:       clock,
		metrics:     metrics,
		l:           l.Component("run_aggregator"),
	}
}

// Run analyzes symbols. Individual asset failures are recorded on the run; only an
// invalid config or cancellation fails the call.
func (a *RunAggregator) Run(ctx context.Context, symbols []string, cfg RunConfig) (*models.AnalysisRun, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbols to analyze", errs.ErrInvalidConfig)
	}
	if len(symbols) > MaxAssetsPerRun {
		return nil, fmt.Errorf("%w: %d symbols, at most %d per run", errs.ErrInvalidConfig, len(symbols), MaxAssetsPerRun)
	}

	created := a.clock.Now().UTC()
	run := &models.AnalysisRun{
		RunID:     created.Format(models.RunIDLayout),
		CreatedAt: created,
		Requested: append([]string(nil), symbols...),
		Signals:   []models.Signal{},
		Analytics: []models.AssetAnalytics{},
		Errors:    []*errs.AssetError{},
	}
	a.l.Info("run started",
		applogger.String("run_id", run.RunID),
		applogger.Int("symbols", len(symbols)),
		applogger.Int("workers", cfg.Workers),
		applogger.String("interval", string(cfg.Interval)),
		applogger.Int("days", cfg.LookbackDays),
	)

	results := make([]models.AssetResult, len(symbols))
	var cancelled atomic.Bool

	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for i, sym := range symbols {
		if ctx.Err() != nil {
			cancelled.Store(true)
			break
		}
		i, sym := i, sym
		g.Go(func() error {
			if ctx.Err() != nil {
				cancelled.Store(true)
				return nil
			}
			results[i] = a.pipeline.Process(ctx, sym, cfg)
			return nil
		})
	}
	_ = g.Wait()

	if cancelled.Load() || ctx.Err() != nil {
		a.metrics.RecordRun("cancelled", a.clock.Now().Sub(created).Seconds())
		a.l.Warn("run cancelled", applogger.String("run_id", run.RunID))
		return nil, fmt.Errorf("%w: %s", errs.ErrRunCancelled, run.RunID)
	}

	a.merge(run, results)

	if cfg.Correlation && a.correlation != nil {
		fetched := make(map[string]models.CandleSeries, len(results))
		for _, r := range run.Results {
			if r.Fetched() {
				fetched[r.Symbol] = r.Series
			}
		}
		rep := a.correlation.Analyze(fetched)
		run.Correlations = &rep
	}

	run.CompletedAt = a.clock.Now().UTC()
	run.Summary = summarize(run, cfg)
	a.metrics.RecordRun("completed", run.CompletedAt.Sub(created).Seconds())

	a.l.Info("run completed",
		applogger.String("run_id", run.RunID),
		applogger.Int("analyzed", run.Summary.TotalAssetsAnalyzed),
		applogger.Int("failed", run.Summary.TotalAssetsFailed),
		applogger.Int("buy", run.Summary.BuySignals),
		applogger.Int("sell", run.Summary.SellSignals),
		applogger.Duration("duration_ms", run.CompletedAt.Sub(created)),
	)
	return run, nil
}

func (a *RunAggregator) merge(run *models.AnalysisRun, results []models.AssetResult) {
	sort.Slice(results, func(i, j int) bool { return results[i].Symbol < results[j].Symbol })
	run.Results = results
	for _, r := range results {
		if r.Err != nil {
			run.Errors = append(run.Errors, r.Err)
			continue
		}
		run.Signals = append(run.Signals, r.Signal)
		run.Analytics = append(run.Analytics, r.Analytics)
		a.metrics.RecordSignal(string(r.Signal.Signal))
	}
}

func summarize(run *models.AnalysisRun, cfg RunConfig) models.RunSummary {
	s := models.RunSummary{
		RunID:                run.RunID,
		TotalAssetsRequested: len(run.Requested),
		TotalAssetsAnalyzed:  len(run.Signals),
		TotalAssetsFailed:    len(run.Errors),
		Interval:             string(cfg.Interval),
		LookbackDays:         cfg.LookbackDays,
		Seed:                 cfg.Seed,
		DurationMillis:       run.CompletedAt.Sub(run.CreatedAt).Milliseconds(),
	}
	var sumReturn, sumStrength float64
	for _, sig := range run.Signals {
		switch sig.Signal {
		case models.SignalBuy:
			s.BuySignals++
		case models.SignalSell:
			s.SellSignals++
		default:
			s.HoldSignals++
		}
		if sig.RiskLevel == models.RiskHigh {
			s.HighRiskSignals++
		}
		sumReturn += sig.PotentialReturn
		sumStrength += sig.SignalStrength
	}
	if n := len(run.Signals); n > 0 {
		s.AvgPotentialReturn = sumReturn / float64(n)
		s.AvgSignalStrength = sumStrength / float64(n)
	}
	if run.Correlations != nil {
		s.CorrelatedPairs = len(run.Correlations.Pairs)
	}
	return s
}

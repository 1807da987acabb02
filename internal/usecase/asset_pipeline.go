package usecase

import (
	"context"
	"time"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	drepo "PolyChannel/internal/domain/repository"
	domsvc "PolyChannel/internal/domain/service"
	"PolyChannel/internal/services/features"
	applogger "PolyChannel/pkg/logger"
)

// CandleProvider is the market data cache as seen by the pipeline.
type CandleProvider interface {
	GetCandles(ctx context.Context, symbol string, interval drepo.Interval, lookbackDays int) (models.CandleSeries, error)
}

// AssetProcessor runs the whole per-asset pipeline and never fails the run.
type AssetProcessor interface {
	Process(ctx context.Context, symbol string, cfg RunConfig) models.AssetResult
}

// AssetPipeline chains fetch, indicators, optimization and classification for one symbol.
type AssetPipeline struct {
	candles    CandleProvider
	indicators domsvc.IndicatorCalculator
	optimizer  domsvc.ChannelOptimizer
	classifier domsvc.SignalClassifier
	metrics    drepo.Metrics
	l          *applogger.Logger
}

func NewAssetPipeline(
	candles CandleProvider,
	indicators domsvc.IndicatorCalculator,
	optimizer domsvc.ChannelOptimizer,
	classifier domsvc.SignalClassifier,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *AssetPipeline {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &AssetPipeline{
		candles:    candles,
		indicators: indicators,
		optimizer:  optimizer,
		classifier: classifier,
		metrics:    metrics,
		l:          l.Component("asset_pipeline"),
	}
}

// Process returns a result carrying either the signal and analytics, or the stage error.
func (p *AssetPipeline) Process(ctx context.Context, symbol string, cfg RunConfig) models.AssetResult {
	start := time.Now()
	res := models.AssetResult{Symbol: symbol}
	fail := func(stage errs.Stage, err error) models.AssetResult {
		res.Err = errs.NewAssetError(symbol, stage, err)
		res.Duration = time.Since(start)
		p.metrics.RecordAsset("failed")
		p.metrics.RecordError(res.Err.Kind)
		p.l.Warn("asset failed",
			applogger.String("symbol", symbol),
			applogger.String("stage", string(stage)),
			applogger.String("kind", res.Err.Kind),
			applogger.Error(err),
		)
		return res
	}

	t := time.Now()
	series, err := p.candles.GetCandles(ctx, symbol, cfg.Interval, cfg.LookbackDays)
	p.metrics.RecordStageLatency(string(errs.StageFetch), time.Since(t).Seconds())
	if err != nil {
		return fail(errs.StageFetch, err)
	}
	res.Series = series

	t = time.Now()
	ind, err := p.indicators.Compute(series)
	p.metrics.RecordStageLatency(string(errs.StageIndicators), time.Since(t).Seconds())
	if err != nil {
		return fail(errs.StageIndicators, err)
	}
	res.Indicators = ind

	t = time.Now()
	opt, err := p.optimizer.Optimize(ctx, symbol, series.Closes(), cfg.Seed)
	p.metrics.RecordStageLatency(string(errs.StageOptimize), time.Since(t).Seconds())
	res.Optimization = opt
	if err != nil {
		return fail(errs.StageOptimize, err)
	}

	last, _ := series.Last()
	t = time.Now()
	sig := p.classifier.Classify(opt, last.Close, ind)
	sig.Timestamp = last.Bucket
	p.metrics.RecordStageLatency(string(errs.StageClassify), time.Since(t).Seconds())
	res.Signal = sig
	res.Analytics = buildAnalytics(series, cfg.Interval, ind, opt)

	res.Duration = time.Since(start)
	p.metrics.RecordAsset("analyzed")
	p.l.Debug("asset analyzed",
		applogger.String("symbol", symbol),
		applogger.String("signal", string(sig.Signal)),
		applogger.String("channel", opt.Best.Config.String()),
		applogger.Duration("duration_ms", res.Duration),
	)
	return res
}

func buildAnalytics(s models.CandleSeries, interval drepo.Interval, ind models.IndicatorSet, opt models.OptimizationResult) models.AssetAnalytics {
	var first models.Candle
	if s.Len() > 0 {
		first = s.Candles[0]
	}
	last, _ := s.Last()
	best := opt.Best
	return models.AssetAnalytics{
		Symbol:               s.Symbol,
		Interval:             string(interval),
		Candles:              s.Len(),
		FirstTimestamp:       first.Bucket,
		LastTimestamp:        last.Bucket,
		CurrentPrice:         last.Close,
		WindowReturn:         features.WindowReturn(s.Closes()),
		AnnualizedVolatility: features.RealizedVolatility(features.LogReturns(s.Candles), 0, interval.BarsPerYear()),
		Degree:               best.Config.Degree,
		KStd:                 best.Config.KStd,
		Lookback:             best.Config.Lookback,
		Sigma:                best.Sigma,
		Coefficients:         best.Coefficients,
		ObjectiveScore:       best.ObjectiveScore,
		Trades:               best.Trades,
		OptimizerState:       opt.State,
		TrialsRun:            opt.TrialsRun,
		ValidTrials:          opt.ValidTrials,
		Indicators:           ind,
	}
}

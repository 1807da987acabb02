package service

import (
	"context"

	"PolyChannel/internal/domain/models"
)

// IndicatorCalculator derives the indicator set from a price series.
type IndicatorCalculator interface {
	Compute(series models.CandleSeries) (models.IndicatorSet, error)
}

// Objective scores a fitted channel against the closes it was fitted on.
// Higher is better. trades is the number of completed round trips the score is based on.
type Objective interface {
	Name() string
	Score(closes []float64, fit models.ChannelFit) (score float64, trades int)
}

// ChannelOptimizer searches the channel space for one asset.
type ChannelOptimizer interface {
	Optimize(ctx context.Context, symbol string, closes []float64, runSeed int64) (models.OptimizationResult, error)
}

// SignalClassifier turns an optimized channel into a trading signal.
type SignalClassifier interface {
	Classify(result models.OptimizationResult, currentPrice float64, ind models.IndicatorSet) models.Signal
}

// CorrelationAnalyzer builds the filtered cross-asset correlation report.
type CorrelationAnalyzer interface {
	Analyze(series map[string]models.CandleSeries) models.CorrelationReport
}

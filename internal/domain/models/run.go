package models

import (
	"time"

	"PolyChannel/internal/domain/errs"
)

// RunIDLayout formats the run creation time into the bundle identifier.
const RunIDLayout = "20060102_150405"

// AssetAnalytics is the per-asset record backing the asset_analytics table.
type AssetAnalytics struct {
	Symbol               string         `json:"symbol"`
	Interval             string         `json:"interval"`
	Candles              int            `json:"candles"`
	FirstTimestamp       time.Time      `json:"first_timestamp"`
	LastTimestamp        time.Time      `json:"last_timestamp"`
	CurrentPrice         float64        `json:"current_price"`
	WindowReturn         float64        `json:"window_return_pct"`
	AnnualizedVolatility float64        `json:"annualized_volatility"`
	Degree               int            `json:"degree"`
	KStd                 float64        `json:"kstd"`
	Lookback             int            `json:"lookback"`
	Sigma                float64        `json:"sigma"`
	Coefficients         []float64      `json:"coefficients"`
	ObjectiveScore       float64        `json:"objective_score"`
	Trades               int            `json:"trades"`
	OptimizerState       OptimizerState `json:"optimizer_state"`
	TrialsRun            int            `json:"trials_run"`
	ValidTrials          int            `json:"valid_trials"`
	Indicators           IndicatorSet   `json:"indicators"`
}

// AssetResult is what one worker hands back to the aggregator for one symbol.
// Exactly one of Err or (Signal, Optimization) is meaningful.
type AssetResult struct {
	Symbol       string
	Series       CandleSeries
	Indicators   IndicatorSet
	Optimization OptimizationResult
	Signal       Signal
	Analytics    AssetAnalytics
	Err          *errs.AssetError
	Duration     time.Duration
}

// Fetched reports whether the price series made it past the cache, regardless of later stages.
func (r AssetResult) Fetched() bool { return r.Series.Len() > 0 }

// RunSummary backs the run_summary table.
type RunSummary struct {
	RunID                string  `json:"run_id"`
	TotalAssetsRequested int     `json:"total_assets_requested"`
	TotalAssetsAnalyzed  int     `json:"total_assets_analyzed"`
	TotalAssetsFailed    int     `json:"total_assets_failed"`
	BuySignals           int     `json:"buy_signals"`
	SellSignals          int     `json:"sell_signals"`
	HoldSignals          int     `json:"hold_signals"`
	HighRiskSignals      int     `json:"high_risk_signals"`
	AvgPotentialReturn   float64 `json:"avg_potential_return"`
	AvgSignalStrength    float64 `json:"avg_signal_strength"`
	CorrelatedPairs      int     `json:"correlated_pairs"`
	Interval             string  `json:"interval"`
	LookbackDays         int     `json:"lookback_days"`
	Seed                 int64   `json:"seed"`
	DurationMillis       int64   `json:"duration_ms"`
}

// AnalysisRun is the merged, frozen result of one batch.
type AnalysisRun struct {
	RunID        string             `json:"run_id"`
	CreatedAt    time.Time          `json:"created_at"`
	CompletedAt  time.Time          `json:"completed_at"`
	Requested    []string           `json:"requested_symbols"`
	Signals      []Signal           `json:"signals"`
	Analytics    []AssetAnalytics   `json:"analytics"`
	Results      []AssetResult      `json:"-"`
	Correlations *CorrelationReport `json:"correlations,omitempty"`
	Errors       []*errs.AssetError `json:"errors"`
	Summary      RunSummary         `json:"summary"`
}

// Frozen reports whether the aggregator has finished merging.
func (r *AnalysisRun) Frozen() bool { return !r.CompletedAt.IsZero() }

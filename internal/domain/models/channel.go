package models

import "fmt"

// ChannelConfig is one point of the optimizer search space.
type ChannelConfig struct {
	Degree   int     `json:"degree"`
	KStd     float64 `json:"kstd"`
	Lookback int     `json:"lookback"`
}

// Validate enforces degree >= 1, kstd > 0 and lookback > degree.
func (c ChannelConfig) Validate() error {
	if c.Degree < 1 {
		return fmt.Errorf("degree must be >= 1, got %d", c.Degree)
	}
	if !(c.KStd > 0) {
		return fmt.Errorf("kstd must be > 0, got %v", c.KStd)
	}
	if c.Lookback <= c.Degree {
		return fmt.Errorf("lookback %d must exceed degree %d", c.Lookback, c.Degree)
	}
	return nil
}

func (c ChannelConfig) String() string {
	return fmt.Sprintf("deg=%d kstd=%.2f lookback=%d", c.Degree, c.KStd, c.Lookback)
}

// ChannelFit is a fitted regression channel over the trailing Lookback bars.
// UpperBand[i] >= Centerline[i] >= LowerBand[i] for every i.
type ChannelFit struct {
	Config         ChannelConfig `json:"config"`
	Coefficients   []float64     `json:"coefficients"`
	Centerline     []float64     `json:"centerline"`
	UpperBand      []float64     `json:"upper_band"`
	LowerBand      []float64     `json:"lower_band"`
	Sigma          float64       `json:"sigma"`
	ObjectiveScore float64       `json:"objective_score"`
	Trades         int           `json:"trades"`
}

// LastBands returns the channel values at the most recent bar.
func (f ChannelFit) LastBands() (upper, center, lower float64) {
	n := len(f.Centerline)
	if n == 0 {
		return 0, 0, 0
	}
	return f.UpperBand[n-1], f.Centerline[n-1], f.LowerBand[n-1]
}

// OptimizerState tracks the lifecycle of one parameter search.
type OptimizerState string

const (
	StatePending   OptimizerState = "PENDING"
	StateSearching OptimizerState = "SEARCHING"
	StateConverged OptimizerState = "CONVERGED"
	StateExhausted OptimizerState = "EXHAUSTED"
	StateFailed    OptimizerState = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s OptimizerState) Terminal() bool {
	return s == StateConverged || s == StateExhausted || s == StateFailed
}

// OptimizationResult is the outcome of searching the channel space for one asset.
type OptimizationResult struct {
	Symbol       string         `json:"symbol"`
	Best         ChannelFit     `json:"best"`
	State        OptimizerState `json:"state"`
	TrialsRun    int            `json:"trials_run"`
	ValidTrials  int            `json:"valid_trials"`
	Seed         int64          `json:"seed"`
	SearchMode   string         `json:"search_mode"`
	Objective    string         `json:"objective"`
	FailedReason string         `json:"failed_reason,omitempty"`
}

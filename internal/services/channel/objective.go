package channel

import (
	"fmt"
	"math"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	"PolyChannel/internal/domain/service"

	"gonum.org/v1/gonum/stat"
)

const (
	ObjectiveSharpeAdjusted = "sharpe_adjusted"
	ObjectiveSimpleReturn   = "simple_return"
	ObjectiveSharpe         = "sharpe"
)

// NewObjective resolves an objective by its config name. Empty selects sharpe_adjusted.
func NewObjective(name string) (service.Objective, error) {
	switch name {
	case "", ObjectiveSharpeAdjusted:
		return SharpeAdjusted{}, nil
	case ObjectiveSimpleReturn:
		return SimpleReturn{}, nil
	case ObjectiveSharpe:
		return Sharpe{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown objective %q", errs.ErrInvalidConfig, name)
	}
}

// Backtest replays the long-only band-touch strategy over the fitted window: enter at or
// below the lower band, exit at or above the upper band. An open position is closed at the
// last close. closes may be longer than the window; only its tail is used.
func Backtest(closes []float64, fit models.ChannelFit) []float64 {
	n := len(fit.Centerline)
	if n == 0 || len(closes) < n {
		return nil
	}
	window := closes[len(closes)-n:]

	var (
		trades []float64
		entry  float64
		inPos  bool
	)
	for i, p := range window {
		switch {
		case !inPos && p <= fit.LowerBand[i]:
			entry, inPos = p, true
		case inPos && p >= fit.UpperBand[i]:
			trades = append(trades, p/entry-1)
			inPos = false
		}
	}
	if inPos {
		trades = append(trades, window[n-1]/entry-1)
	}
	return trades
}

// compound returns the total return of taking every trade in sequence.
func compound(trades []float64) float64 {
	g := 1.0
	for _, r := range trades {
		g *= 1 + r
	}
	return g - 1
}

func popStd(trades []float64) float64 {
	if len(trades) < 2 {
		return 0
	}
	return stat.PopStdDev(trades, nil)
}

// SharpeAdjusted divides the compounded strategy return by one plus the dispersion of trade returns.
type SharpeAdjusted struct{}

func (SharpeAdjusted) Name() string { return ObjectiveSharpeAdjusted }

func (SharpeAdjusted) Score(closes []float64, fit models.ChannelFit) (float64, int) {
	trades := Backtest(closes, fit)
	return compound(trades) / (1 + popStd(trades)), len(trades)
}

// SimpleReturn is the compounded strategy return.
type SimpleReturn struct{}

func (SimpleReturn) Name() string { return ObjectiveSimpleReturn }

func (SimpleReturn) Score(closes []float64, fit models.ChannelFit) (float64, int) {
	trades := Backtest(closes, fit)
	return compound(trades), len(trades)
}

// Sharpe is mean/std of trade returns scaled by sqrt(trades). Fewer than two trades, or no
// dispersion, scores zero.
type Sharpe struct{}

func (Sharpe) Name() string { return ObjectiveSharpe }

func (Sharpe) Score(closes []float64, fit models.ChannelFit) (float64, int) {
	trades := Backtest(closes, fit)
	sd := popStd(trades)
	if sd == 0 || math.IsNaN(sd) {
		return 0, len(trades)
	}
	return stat.Mean(trades, nil) / sd * math.Sqrt(float64(len(trades))), len(trades)
}

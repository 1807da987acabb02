// Package optimizer searches (degree, kstd, lookback) for the channel that scored best
// on its own history.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	drepo "PolyChannel/internal/domain/repository"
	"PolyChannel/internal/domain/service"
	"PolyChannel/internal/services/channel"
	applogger "PolyChannel/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// ScoreTolerance is the band within which two scores count as tied.
const ScoreTolerance = 1e-9

// Config drives one search. Hint's degree and kstd are evaluated first.
type Config struct {
	Mode   string `validate:"oneof=grid random"`
	Budget int    `validate:"gte=1"`
	Hint   struct {
		Degree int     `validate:"gte=1"`
		KStd   float64 `validate:"gt=0"`
	}
	Bounds Bounds
}

// DefaultConfig is a 300-trial grid search hinted at degree 4, kstd 2.0.
func DefaultConfig() Config {
	c := Config{Mode: ModeGrid, Budget: 300, Bounds: DefaultBounds()}
	c.Hint.Degree = 4
	c.Hint.KStd = 2.0
	return c
}

var validate = validator.New()

type Optimizer struct {
	cfg       Config
	objective service.Objective
	metrics   drepo.Metrics
	l         *applogger.Logger
}

type Option func(*Optimizer)

func WithMetrics(m drepo.Metrics) Option {
	return func(o *Optimizer) { o.metrics = m }
}

func WithLogger(l *applogger.Logger) Option {
	return func(o *Optimizer) { o.l = l.Component("optimizer") }
}

// New validates cfg once; Optimize never re-checks it.
func New(cfg Config, objective service.Objective, opts ...Option) (*Optimizer, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: optimizer: %v", errs.ErrInvalidConfig, err)
	}
	if objective == nil {
		objective = channel.SharpeAdjusted{}
	}
	o := &Optimizer{cfg: cfg, objective: objective, metrics: drepo.NopMetrics{}, l: applogger.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// search is the mutable state of one Optimize call.
type search struct {
	state   models.OptimizerState
	best    models.ChannelFit
	found   bool
	trials  int
	valid   int
	lastErr error
}

// Optimize runs the configured search over closes. runSeed is mixed with the symbol so
// every asset samples its own stream. A search where every trial was discarded returns
// the FAILED result together with ErrOptimizationFailed.
func (o *Optimizer) Optimize(ctx context.Context, symbol string, closes []float64, runSeed int64) (models.OptimizationResult, error) {
	seed := AssetSeed(runSeed, symbol)
	res := models.OptimizationResult{
		Symbol:     symbol,
		State:      models.StatePending,
		Seed:       seed,
		SearchMode: o.cfg.Mode,
		Objective:  o.objective.Name(),
	}

	upper := o.cfg.Bounds.LookbackMax
	if len(closes) < upper {
		upper = len(closes)
	}
	if upper < o.cfg.Bounds.LookbackMin {
		res.State = models.StateFailed
		res.FailedReason = fmt.Sprintf("%d closes, minimum lookback %d", len(closes), o.cfg.Bounds.LookbackMin)
		o.metrics.RecordTrials(string(res.State), 0)
		return res, fmt.Errorf("%w: %s: %s", errs.ErrOptimizationFailed, symbol, res.FailedReason)
	}

	hint := models.ChannelConfig{Degree: o.cfg.Hint.Degree, KStd: roundKStd(o.cfg.Hint.KStd), Lookback: upper}
	s := &search{state: models.StateSearching}
	res.State = s.state

	if err := o.trial(ctx, s, closes, hint); err != nil {
		return res, err
	}

	exhausted := false
	switch o.cfg.Mode {
	case ModeRandom:
		smp := newSampler(seed, o.cfg.Bounds, upper)
		for s.trials < o.cfg.Budget {
			if err := o.trial(ctx, s, closes, smp.next()); err != nil {
				return res, err
			}
		}
	default:
		all := o.cfg.Bounds.grid(upper, hint)
		remaining := o.cfg.Budget - 1
		exhausted = len(all) <= remaining
		for _, c := range stride(all, remaining) {
			if err := o.trial(ctx, s, closes, c); err != nil {
				return res, err
			}
		}
	}

	res.TrialsRun = s.trials
	res.ValidTrials = s.valid
	switch {
	case !s.found:
		s.state = models.StateFailed
		res.FailedReason = "no valid fit"
		if s.lastErr != nil {
			res.FailedReason = s.lastErr.Error()
		}
	case exhausted:
		s.state = models.StateExhausted
	default:
		s.state = models.StateConverged
	}
	res.State = s.state
	o.metrics.RecordTrials(string(res.State), res.TrialsRun)

	if !s.found {
		o.l.Warn("optimization failed",
			applogger.String("symbol", symbol),
			applogger.Int("trials", res.TrialsRun),
			applogger.String("reason", res.FailedReason),
		)
		return res, fmt.Errorf("%w: %s after %d trials: %s",
			errs.ErrOptimizationFailed, symbol, res.TrialsRun, res.FailedReason)
	}

	res.Best = s.best
	o.l.Debug("optimization finished",
		applogger.String("symbol", symbol),
		applogger.String("state", string(res.State)),
		applogger.String("best", res.Best.Config.String()),
		applogger.Float64("score", res.Best.ObjectiveScore),
		applogger.Int("trials", res.TrialsRun),
		applogger.Int("valid", res.ValidTrials),
	)
	return res, nil
}

// trial fits one configuration. Degenerate and short fits are discarded; anything else
// aborts the search.
func (o *Optimizer) trial(ctx context.Context, s *search, closes []float64, cfg models.ChannelConfig) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrRunCancelled, err)
	}
	s.trials++

	fit, err := channel.Fit(closes, cfg, o.objective)
	if err != nil {
		if errors.Is(err, errs.ErrDegenerateFit) || errors.Is(err, errs.ErrInsufficientData) || errors.Is(err, errs.ErrInvalidConfig) {
			s.lastErr = err
			return nil
		}
		return err
	}
	if math.IsNaN(fit.ObjectiveScore) || math.IsInf(fit.ObjectiveScore, 0) {
		s.lastErr = fmt.Errorf("%w: non-finite objective for %s", errs.ErrDegenerateFit, cfg)
		return nil
	}

	s.valid++
	if !s.found || better(fit, s.best) {
		s.best = fit
		s.found = true
	}
	return nil
}

// better reports whether a beats b: higher score, or within tolerance the simpler channel
// (lower degree, then narrower kstd, then shorter lookback).
func better(a, b models.ChannelFit) bool {
	if a.ObjectiveScore > b.ObjectiveScore+ScoreTolerance {
		return true
	}
	if a.ObjectiveScore < b.ObjectiveScore-ScoreTolerance {
		return false
	}
	ac, bc := a.Config, b.Config
	if ac.Degree != bc.Degree {
		return ac.Degree < bc.Degree
	}
	if ac.KStd != bc.KStd {
		return ac.KStd < bc.KStd
	}
	return ac.Lookback < bc.Lookback
}

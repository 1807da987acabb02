package optimizer

import (
	"context"
	"errors"
	"math"
	"testing"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	"PolyChannel/internal/services/channel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cyclical(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 200 + 0.3*float64(i) + 12*math.Sin(float64(i)/5) + 3*math.Cos(float64(i)*1.7)
	}
	return out
}

const testSeed int64 = 42

func smallConfig() Config {
	c := DefaultConfig()
	c.Bounds = Bounds{
		DegreeMin: 2, DegreeMax: 3,
		KStdMin: 1.0, KStdMax: 2.0, KStdStep: 0.5,
		LookbackMin: 30, LookbackMax: 720, LookbackStep: 30,
	}
	return c
}

func newOptimizer(t *testing.T, cfg Config) *Optimizer {
	t.Helper()
	o, err := New(cfg, channel.SharpeAdjusted{})
	require.NoError(t, err)
	return o
}

func TestOptimize_ExhaustedWhenSpaceFitsBudget(t *testing.T) {
	// 2 degrees x 3 kstds x lookbacks {30, 60} plus the hint at lookback 60
	res, err := newOptimizer(t, smallConfig()).Optimize(context.Background(), "BTCUSDT", cyclical(60), testSeed)
	require.NoError(t, err)

	assert.Equal(t, models.StateExhausted, res.State)
	assert.Equal(t, 13, res.TrialsRun)
	assert.Equal(t, 13, res.ValidTrials)
	assert.NoError(t, res.Best.Config.Validate())
}

func TestOptimize_ConvergedWhenBudgetSpent(t *testing.T) {
	cfg := smallConfig()
	cfg.Budget = 5
	res, err := newOptimizer(t, cfg).Optimize(context.Background(), "BTCUSDT", cyclical(60), testSeed)
	require.NoError(t, err)

	assert.Equal(t, models.StateConverged, res.State)
	assert.Equal(t, 5, res.TrialsRun)
}

func TestOptimize_HintIsFirstTrial(t *testing.T) {
	cfg := smallConfig()
	cfg.Budget = 1
	cfg.Hint.Degree = 3
	cfg.Hint.KStd = 1.5
	res, err := newOptimizer(t, cfg).Optimize(context.Background(), "ETHUSDT", cyclical(100), testSeed)
	require.NoError(t, err)

	assert.Equal(t, models.ChannelConfig{Degree: 3, KStd: 1.5, Lookback: 100}, res.Best.Config)
}

func TestOptimize_DeterministicUnderSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeRandom
	cfg.Budget = 40
	closes := cyclical(400)

	a, err := newOptimizer(t, cfg).Optimize(context.Background(), "SOLUSDT", closes, testSeed)
	require.NoError(t, err)
	b, err := newOptimizer(t, cfg).Optimize(context.Background(), "SOLUSDT", closes, testSeed)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, models.StateConverged, a.State)
	assert.Equal(t, AssetSeed(testSeed, "SOLUSDT"), a.Seed)
	assert.NotEqual(t, AssetSeed(testSeed, "SOLUSDT"), AssetSeed(testSeed, "ADAUSDT"))

	c, err := newOptimizer(t, cfg).Optimize(context.Background(), "SOLUSDT", closes, testSeed+1)
	require.NoError(t, err)
	assert.Equal(t, AssetSeed(testSeed+1, "SOLUSDT"), c.Seed)
}

func TestOptimize_TieBreakPrefersSimplestChannel(t *testing.T) {
	flat := make([]float64, 90)
	for i := range flat {
		flat[i] = 10
	}
	res, err := newOptimizer(t, smallConfig()).Optimize(context.Background(), "FLAT", flat, testSeed)
	require.NoError(t, err)

	assert.Equal(t, models.ChannelConfig{Degree: 2, KStd: 1.0, Lookback: 30}, res.Best.Config)
}

func TestBetter(t *testing.T) {
	fit := func(score float64, d int, k float64, lb int) models.ChannelFit {
		return models.ChannelFit{ObjectiveScore: score, Config: models.ChannelConfig{Degree: d, KStd: k, Lookback: lb}}
	}
	tests := []struct {
		name string
		a, b models.ChannelFit
		want bool
	}{
		{"higher score wins", fit(0.2, 6, 3, 700), fit(0.1, 2, 1, 30), true},
		{"tie goes to lower degree", fit(0.1+1e-12, 2, 3, 700), fit(0.1, 3, 1, 30), true},
		{"tie goes to smaller kstd", fit(0.1, 3, 1.5, 700), fit(0.1, 3, 2, 30), true},
		{"tie goes to shorter lookback", fit(0.1, 3, 2, 60), fit(0.1, 3, 2, 90), true},
		{"identical is not better", fit(0.1, 3, 2, 60), fit(0.1, 3, 2, 60), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, better(tt.a, tt.b))
		})
	}
}

func TestOptimize_Failed(t *testing.T) {
	t.Run("series shorter than minimum lookback", func(t *testing.T) {
		res, err := newOptimizer(t, smallConfig()).Optimize(context.Background(), "NEW", cyclical(20), testSeed)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrOptimizationFailed))
		assert.Equal(t, models.StateFailed, res.State)
		assert.Equal(t, 0, res.TrialsRun)
	})

	t.Run("every trial degenerate", func(t *testing.T) {
		cfg := smallConfig()
		cfg.Hint.Degree = 2
		cfg.Bounds.DegreeMax = 2
		cfg.Bounds.LookbackMin, cfg.Bounds.LookbackMax = 3, 3
		res, err := newOptimizer(t, cfg).Optimize(context.Background(), "TINY", cyclical(10), testSeed)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrOptimizationFailed))
		assert.Equal(t, models.StateFailed, res.State)
		assert.Equal(t, 0, res.ValidTrials)
		assert.Contains(t, res.FailedReason, "degenerate")
	})
}

func TestOptimize_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newOptimizer(t, smallConfig()).Optimize(ctx, "BTCUSDT", cyclical(60), testSeed)
	assert.True(t, errors.Is(err, errs.ErrRunCancelled))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "annealing"
	_, err := New(cfg, nil)
	assert.True(t, errors.Is(err, errs.ErrInvalidConfig))

	cfg = DefaultConfig()
	cfg.Budget = 0
	_, err = New(cfg, nil)
	assert.True(t, errors.Is(err, errs.ErrInvalidConfig))
}

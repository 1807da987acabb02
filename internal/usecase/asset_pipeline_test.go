package usecase

import (
	"context"
	"testing"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	"PolyChannel/internal/services/channel"
	"PolyChannel/internal/services/indicators"
	"PolyChannel/internal/services/optimizer"
	"PolyChannel/internal/services/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetPipeline_Success(t *testing.T) {
	p := newPipeline(t, &syntheticCandles{})
	res := p.Process(context.Background(), "BTCUSDT", runConfig())

	require.Nil(t, res.Err)
	assert.Equal(t, "BTCUSDT", res.Signal.Symbol)
	assert.Contains(t, []models.SignalType{models.SignalBuy, models.SignalSell, models.SignalHold}, res.Signal.Signal)
	assert.Equal(t, 120, res.Analytics.Candles)
	assert.Equal(t, res.Optimization.Best.Config.Degree, res.Analytics.Degree)
	assert.Greater(t, res.Analytics.AnnualizedVolatility, 0.0)
	assert.True(t, res.Optimization.State.Terminal())
	assert.Equal(t, res.Series.Candles[119].Close, res.Signal.CurrentPrice)
}

func TestAssetPipeline_SearchUsesRunSeed(t *testing.T) {
	p := newPipeline(t, &syntheticCandles{})
	for _, seed := range []int64{42, 7} {
		cfg := runConfig()
		cfg.Seed = seed
		res := p.Process(context.Background(), "ETHUSDT", cfg)
		require.Nil(t, res.Err)
		assert.Equal(t, optimizer.AssetSeed(seed, "ETHUSDT"), res.Optimization.Seed)
	}
}

func TestAssetPipeline_StageErrors(t *testing.T) {
	strict := optimizer.DefaultConfig()
	strict.Bounds.LookbackMin = 60
	strict.Bounds.LookbackMax = 720
	strictOpt, err := optimizer.New(strict, channel.SharpeAdjusted{})
	require.NoError(t, err)

	tests := []struct {
		name     string
		pipeline *AssetPipeline
		days     int
		stage    errs.Stage
		kind     string
	}{
		{
			name:     "fetch",
			pipeline: newPipeline(t, &syntheticCandles{failing: map[string]error{"BTCUSDT": errs.ErrRateLimited}}),
			days:     120,
			stage:    errs.StageFetch,
			kind:     "rate_limited",
		},
		{
			name:     "indicators",
			pipeline: newPipeline(t, &syntheticCandles{}),
			days:     40,
			stage:    errs.StageIndicators,
			kind:     "insufficient_data",
		},
		{
			name:     "optimize",
			pipeline: NewAssetPipeline(&syntheticCandles{}, indicators.New(), strictOpt, signal.New(), nil, nil),
			days:     55,
			stage:    errs.StageOptimize,
			kind:     "optimization_failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := runConfig()
			cfg.LookbackDays = tt.days
			res := tt.pipeline.Process(context.Background(), "BTCUSDT", cfg)
			require.NotNil(t, res.Err)
			assert.Equal(t, tt.stage, res.Err.Stage)
			assert.Equal(t, tt.kind, res.Err.Kind)
			assert.Equal(t, "BTCUSDT", res.Err.Symbol)
		})
	}
}

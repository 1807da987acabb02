package usecase

import (
	"context"
	"errors"
	"testing"

	"PolyChannel/internal/domain/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rankedUniverse struct {
	symbols []string
	asked   int
}

func (u *rankedUniverse) TopSymbolsByVolume(_ context.Context, n int) ([]string, error) {
	u.asked = n
	if n > len(u.symbols) {
		n = len(u.symbols)
	}
	return u.symbols[:n], nil
}

func TestSelectSymbols(t *testing.T) {
	u := &rankedUniverse{symbols: []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}}

	got, err := SelectSymbols(context.Background(), []string{" btcusdt", "ETHUSDT", "btcusdt"}, 10, u)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got)
	assert.Equal(t, 0, u.asked)

	got, err = SelectSymbols(context.Background(), nil, 2, u)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got)

	_, err = SelectSymbols(context.Background(), nil, 500, u)
	require.NoError(t, err)
	assert.Equal(t, MaxAssetsPerRun, u.asked)

	_, err = SelectSymbols(context.Background(), nil, 0, u)
	assert.True(t, errors.Is(err, errs.ErrInvalidConfig))

	_, err = SelectSymbols(context.Background(), nil, 5, nil)
	assert.True(t, errors.Is(err, errs.ErrInvalidConfig))
}

func TestSelectSymbols_RejectsMalformedSymbols(t *testing.T) {
	_, err := SelectSymbols(context.Background(), []string{"BTCUSDT", "../../../ESCAPE"}, 0, nil)
	assert.True(t, errors.Is(err, errs.ErrInvalidConfig))

	u := &rankedUniverse{symbols: []string{"BTCUSDT", "ETH/USDT"}}
	_, err = SelectSymbols(context.Background(), nil, 2, u)
	assert.True(t, errors.Is(err, errs.ErrDataUnavailable))
}

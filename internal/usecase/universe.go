package usecase

import (
	"context"
	"fmt"

	"PolyChannel/internal/domain/errs"
	drepo "PolyChannel/internal/domain/repository"
	"PolyChannel/pkg/util"
)

// SelectSymbols returns the explicit list when given, otherwise the top n symbols by
// volume from src. Either way every symbol must pass util.IsSymbol.
func SelectSymbols(ctx context.Context, explicit []string, n int, src drepo.UniverseSource) ([]string, error) {
	if syms := util.NormalizeSymbols(explicit); len(syms) > 0 {
		if len(syms) > MaxAssetsPerRun {
			return nil, fmt.Errorf("%w: %d symbols requested, at most %d per run", errs.ErrInvalidConfig, len(syms), MaxAssetsPerRun)
		}
		if err := util.ValidateSymbols(syms); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrInvalidConfig, err)
		}
		return syms, nil
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: no symbols given and top-n is %d", errs.ErrInvalidConfig, n)
	}
	if n > MaxAssetsPerRun {
		n = MaxAssetsPerRun
	}
	if src == nil {
		return nil, fmt.Errorf("%w: no symbols given and the source cannot rank by volume", errs.ErrInvalidConfig)
	}
	syms, err := src.TopSymbolsByVolume(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("select top %d symbols: %w", n, err)
	}
	syms = util.NormalizeSymbols(syms)
	if err := util.ValidateSymbols(syms); err != nil {
		return nil, fmt.Errorf("%w: top symbols from source: %v", errs.ErrDataUnavailable, err)
	}
	return syms, nil
}

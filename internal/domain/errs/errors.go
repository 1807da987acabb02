// Package errs holds the error taxonomy shared by every stage of an analysis run.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable: upstream fetch failed, returned too few points, or failed validation.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInsufficientData: the series is too short for an indicator window or channel lookback.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDegenerateFit: the regression design matrix is ill-conditioned.
	ErrDegenerateFit = errors.New("degenerate fit")
	// ErrRateLimited: the upstream source throttled the request. Retried before surfacing.
	ErrRateLimited = errors.New("rate limited")
	// ErrOptimizationFailed: every optimizer trial was discarded.
	ErrOptimizationFailed = errors.New("optimization failed")
	// ErrRunCancelled: the run was cancelled before all assets were dispatched.
	ErrRunCancelled = errors.New("run cancelled")
	// ErrExport: the bundle could not be written. This is the only run-fatal kind.
	ErrExport = errors.New("export failed")
	// ErrInvalidConfig: configuration rejected at the pipeline boundary.
	ErrInvalidConfig = errors.New("invalid config")
)

// Stage names the pipeline step an asset failed in.
type Stage string

const (
	StageFetch      Stage = "fetch"
	StageIndicators Stage = "indicators"
	StageOptimize   Stage = "optimize"
	StageClassify   Stage = "classify"
)

// AssetError records why a single asset was excluded from a run.
type AssetError struct {
	Symbol string `json:"symbol"`
	Stage  Stage  `json:"stage"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
	err    error
}

// NewAssetError wraps err for symbol at stage. Kind is derived from the taxonomy.
func NewAssetError(symbol string, stage Stage, err error) *AssetError {
	return &AssetError{
		Symbol: symbol,
		Stage:  stage,
		Kind:   KindOf(err),
		Reason: err.Error(),
		err:    err,
	}
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Symbol, e.Stage, e.Reason)
}

func (e *AssetError) Unwrap() error { return e.err }

// KindOf maps an error to a short label used in logs, metrics and export files.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrDegenerateFit):
		return "degenerate_fit"
	case errors.Is(err, ErrOptimizationFailed):
		return "optimization_failed"
	case errors.Is(err, ErrRunCancelled):
		return "cancelled"
	case errors.Is(err, ErrExport):
		return "export"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	default:
		return "internal"
	}
}

// Package channel fits polynomial regression channels and scores them.
package channel

import (
	"errors"
	"fmt"
	"math"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	"PolyChannel/internal/domain/service"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Fit regresses the trailing cfg.Lookback closes on a degree-cfg.Degree polynomial of the
// bar position scaled to [-1, 1] and wraps the centerline in bands of cfg.KStd residual
// standard deviations. A nil objective leaves the score at zero.
func Fit(closes []float64, cfg models.ChannelConfig, obj service.Objective) (models.ChannelFit, error) {
	if err := cfg.Validate(); err != nil {
		return models.ChannelFit{}, fmt.Errorf("%w: %v", errs.ErrInvalidConfig, err)
	}
	if len(closes) < cfg.Lookback {
		return models.ChannelFit{}, fmt.Errorf("%w: %d closes, lookback %d",
			errs.ErrInsufficientData, len(closes), cfg.Lookback)
	}
	if cfg.Lookback <= cfg.Degree+1 {
		return models.ChannelFit{}, fmt.Errorf("%w: lookback %d leaves no residual freedom for degree %d",
			errs.ErrDegenerateFit, cfg.Lookback, cfg.Degree)
	}

	window := closes[len(closes)-cfg.Lookback:]
	coef, center, err := polyfit(window, cfg.Degree)
	if err != nil {
		return models.ChannelFit{}, err
	}

	resid := make([]float64, len(window))
	for i, y := range window {
		resid[i] = y - center[i]
	}
	sigma := stat.PopStdDev(resid, nil)
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return models.ChannelFit{}, fmt.Errorf("%w: non-finite residual sigma", errs.ErrDegenerateFit)
	}

	width := cfg.KStd * sigma
	upper := make([]float64, len(center))
	lower := make([]float64, len(center))
	for i, c := range center {
		upper[i] = c + width
		lower[i] = c - width
	}

	fit := models.ChannelFit{
		Config:       cfg,
		Coefficients: coef,
		Centerline:   center,
		UpperBand:    upper,
		LowerBand:    lower,
		Sigma:        sigma,
	}
	if obj != nil {
		fit.ObjectiveScore, fit.Trades = obj.Score(closes, fit)
	}
	return fit, nil
}

// polyfit solves the Vandermonde least-squares problem by QR.
func polyfit(y []float64, degree int) ([]float64, []float64, error) {
	n := len(y)
	cols := degree + 1

	a := mat.NewDense(n, cols, nil)
	for i := 0; i < n; i++ {
		x := scaledX(i, n)
		p := 1.0
		for j := 0; j < cols; j++ {
			a.Set(i, j, p)
			p *= x
		}
	}

	var qr mat.QR
	qr.Factorize(a)

	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, nil, fmt.Errorf("%w: design matrix condition %.3g", errs.ErrDegenerateFit, float64(cond))
		}
		return nil, nil, fmt.Errorf("%w: %v", errs.ErrDegenerateFit, err)
	}

	coef := make([]float64, cols)
	for j := range coef {
		coef[j] = beta.AtVec(j)
		if math.IsNaN(coef[j]) || math.IsInf(coef[j], 0) {
			return nil, nil, fmt.Errorf("%w: non-finite coefficient", errs.ErrDegenerateFit)
		}
	}

	var fitted mat.VecDense
	fitted.MulVec(a, &beta)
	center := make([]float64, n)
	for i := range center {
		center[i] = fitted.AtVec(i)
	}
	return coef, center, nil
}

// scaledX maps bar i of n onto [-1, 1].
func scaledX(i, n int) float64 {
	if n < 2 {
		return 0
	}
	return -1 + 2*float64(i)/float64(n-1)
}

// Evaluate returns the centerline value at position x in [-1, 1].
func Evaluate(coef []float64, x float64) float64 {
	v := 0.0
	for j := len(coef) - 1; j >= 0; j-- {
		v = v*x + coef[j]
	}
	return v
}

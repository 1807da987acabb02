package features

import (
	"math"

	"PolyChannel/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// SimpleReturns computes r_t = C_t / C_{t-1} - 1.
// It returns a slice of length len(closes)-1, or nil if insufficient data.
// A non-positive previous close yields NaN so callers can drop the pair.
func SimpleReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev <= 0 {
			out[i-1] = math.NaN()
			continue
		}
		out[i-1] = closes[i]/prev - 1
	}
	return out
}

// LogReturns computes r_t = ln(C_t / C_{t-1}) over the candle closes.
func LogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		cur := candles[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility is the annualized sample standard deviation of the
// trailing window of log returns. window <= 0 uses every return.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 0 {
		window = len(logReturns)
	}
	if window < 2 || len(logReturns) < window {
		return 0
	}
	sd := stat.StdDev(logReturns[len(logReturns)-window:], nil)
	if math.IsNaN(sd) {
		return 0
	}
	return sd * math.Sqrt(barsPerYear)
}

// WindowReturn is the percent change from the first to the last close.
func WindowReturn(closes []float64) float64 {
	if len(closes) < 2 || closes[0] <= 0 {
		return 0
	}
	return (closes[len(closes)-1] - closes[0]) / closes[0] * 100
}

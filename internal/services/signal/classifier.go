// Package signal classifies the current price against an optimized channel.
package signal

import (
	"math"
	"sort"

	"PolyChannel/internal/domain/models"
)

const (
	rsiOversold   = 30
	rsiOverbought = 70

	lowRiskBound    = 10
	mediumRiskBound = 20

	confirmationCount = 4
)

// Classifier has no state; Classify depends only on its arguments.
type Classifier struct{}

func New() *Classifier { return &Classifier{} }

// Classify compares currentPrice with the last bar of the best channel. The timestamp is
// left for the caller to stamp from the candle the price came from.
func (c *Classifier) Classify(result models.OptimizationResult, currentPrice float64, ind models.IndicatorSet) models.Signal {
	upper, center, lower := result.Best.LastBands()

	sig := models.Signal{
		Symbol:        result.Symbol,
		Signal:        models.SignalHold,
		CurrentPrice:  currentPrice,
		UpperBand:     upper,
		LowerBand:     lower,
		Centerline:    center,
		Confirmations: []string{},
	}
	switch {
	case currentPrice < lower:
		sig.Signal = models.SignalBuy
	case currentPrice > upper:
		sig.Signal = models.SignalSell
	}

	if currentPrice > 0 {
		sig.PotentialReturn = (center - currentPrice) / currentPrice * 100
	}
	sig.RiskLevel = Risk(sig.PotentialReturn)

	if sig.Signal != models.SignalHold {
		sig.Confirmations = confirmations(sig.Signal, ind)
		sig.SignalStrength = float64(len(sig.Confirmations)) / confirmationCount
	}
	return sig
}

// Risk tiers the absolute potential return: below 10 is LOW, below 20 MEDIUM, else HIGH.
func Risk(potentialReturn float64) models.RiskLevel {
	abs := math.Abs(potentialReturn)
	switch {
	case abs < lowRiskBound:
		return models.RiskLow
	case abs < mediumRiskBound:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

func confirmations(t models.SignalType, ind models.IndicatorSet) []string {
	buy := t == models.SignalBuy
	out := make([]string, 0, confirmationCount)

	if buy && ind.RSI < rsiOversold {
		out = append(out, models.ConfirmRSIOversold)
	}
	if !buy && ind.RSI > rsiOverbought {
		out = append(out, models.ConfirmRSIOverbought)
	}
	if (buy && ind.MACDHistogram > 0) || (!buy && ind.MACDHistogram < 0) {
		out = append(out, models.ConfirmMACDMomentum)
	}
	if ind.Volume > ind.VolumeSMA20 {
		out = append(out, models.ConfirmVolume)
	}
	if buy && ind.SMA20 > ind.SMA50 {
		out = append(out, models.ConfirmBullishTrend)
	}
	if !buy && ind.SMA20 < ind.SMA50 {
		out = append(out, models.ConfirmBearishTrend)
	}

	sort.Strings(out)
	return out
}

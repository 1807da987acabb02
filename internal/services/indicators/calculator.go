// Package indicators computes the technical indicator set on top of techan.
package indicators

import (
	"fmt"
	"math"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	drepo "PolyChannel/internal/domain/repository"
	applogger "PolyChannel/pkg/logger"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"
)

// MinCandles is the longest indicator window (SMA50).
const MinCandles = 50

const (
	rsiWindow    = 14
	macdFast     = 12
	macdSlow     = 26
	macdSignal   = 9
	bbWindow     = 20
	bbSigma      = 2.0
	atrWindow    = 14
	stochWindow  = 14
	stochSmooth  = 3
	williamsSpan = 14
)

// Calculator is stateless; one instance is safe to share between workers.
type Calculator struct {
	l *applogger.Logger
}

type Option func(*Calculator)

func WithLogger(l *applogger.Logger) Option {
	return func(c *Calculator) { c.l = l.Component("indicators") }
}

func New(opts ...Option) *Calculator {
	c := &Calculator{l: applogger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compute returns the latest value of every indicator in the set.
func (c *Calculator) Compute(s models.CandleSeries) (models.IndicatorSet, error) {
	if s.Len() < MinCandles {
		return models.IndicatorSet{}, fmt.Errorf("%w: %s has %d candles, indicators need %d",
			errs.ErrInsufficientData, s.Symbol, s.Len(), MinCandles)
	}

	ts := toTimeSeries(s)
	last := len(ts.Candles) - 1

	closes := techan.NewClosePriceIndicator(ts)
	volume := techan.NewVolumeIndicator(ts)
	macd := techan.NewMACDIndicator(closes, macdFast, macdSlow)
	fastK := techan.NewFastStochasticIndicator(ts, stochWindow)

	out := models.IndicatorSet{
		Close:         closes.Calculate(last).Float(),
		Volume:        volume.Calculate(last).Float(),
		RSI:           value(techan.NewRelativeStrengthIndexIndicator(closes, rsiWindow), last, 50),
		MACD:          value(macd, last, 0),
		MACDSignal:    value(techan.NewEMAIndicator(macd, macdSignal), last, 0),
		MACDHistogram: value(techan.NewMACDHistogramIndicator(macd, macdSignal), last, 0),
		BBUpper:       value(techan.NewBollingerUpperBandIndicator(closes, bbWindow, bbSigma), last, 0),
		BBMiddle:      value(techan.NewSimpleMovingAverage(closes, bbWindow), last, 0),
		BBLower:       value(techan.NewBollingerLowerBandIndicator(closes, bbWindow, bbSigma), last, 0),
		ATR:           value(techan.NewAverageTrueRangeIndicator(ts, atrWindow), last, 0),
		StochK:        value(fastK, last, 50),
		StochD:        value(techan.NewSlowStochasticIndicator(fastK, stochSmooth), last, 50),
		WilliamsR:     value(NewWilliamsRIndicator(ts, williamsSpan), last, -50),
		SMA20:         value(techan.NewSimpleMovingAverage(closes, 20), last, 0),
		SMA50:         value(techan.NewSimpleMovingAverage(closes, 50), last, 0),
		EMA12:         value(techan.NewEMAIndicator(closes, 12), last, 0),
		EMA26:         value(techan.NewEMAIndicator(closes, 26), last, 0),
		VolumeSMA20:   value(techan.NewSimpleMovingAverage(volume, 20), last, 0),
	}

	c.l.Debug("indicators computed",
		applogger.String("symbol", s.Symbol),
		applogger.Float64("rsi", out.RSI),
		applogger.Float64("macd_histogram", out.MACDHistogram),
	)
	return out, nil
}

func toTimeSeries(s models.CandleSeries) *techan.TimeSeries {
	bar := drepo.Interval(s.Interval).Duration()
	ts := techan.NewTimeSeries()
	for _, k := range s.Candles {
		candle := techan.NewCandle(techan.NewTimePeriod(k.Bucket, bar))
		candle.OpenPrice = big.NewDecimal(k.Open)
		candle.ClosePrice = big.NewDecimal(k.Close)
		candle.MaxPrice = big.NewDecimal(k.High)
		candle.MinPrice = big.NewDecimal(k.Low)
		candle.Volume = big.NewDecimal(k.Volume)
		ts.AddCandle(candle)
	}
	return ts
}

// value walks the indicator up to index so recursive averages fill their
// caches in order, then returns the final value. Flat windows make some
// oscillators divide zero by zero; those report fallback.
func value(ind techan.Indicator, index int, fallback float64) (v float64) {
	defer func() {
		if r := recover(); r != nil {
			v = fallback
		}
	}()
	for i := 0; i < index; i++ {
		ind.Calculate(i)
	}
	v = ind.Calculate(index).Float()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

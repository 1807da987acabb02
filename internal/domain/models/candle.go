package models

import (
	"fmt"
	"math"
	"time"
)

// Candle represents one OHLCV bar.
type Candle struct {
	Bucket time.Time `json:"timestamp"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// CandleSeries is an ordered, validated price history for one symbol.
// Treat it as read-only once returned by the cache; accessors hand out copies.
type CandleSeries struct {
	Symbol   string   `json:"symbol"`
	Interval string   `json:"interval"`
	Candles  []Candle `json:"candles"`
}

// Len returns the number of bars.
func (s CandleSeries) Len() int { return len(s.Candles) }

// Last returns the most recent bar. ok is false for an empty series.
func (s CandleSeries) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Closes returns a copy of the close prices.
func (s CandleSeries) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Window returns the trailing n bars as a new series. n larger than Len yields the whole series.
func (s CandleSeries) Window(n int) CandleSeries {
	start := 0
	if n < len(s.Candles) {
		start = len(s.Candles) - n
	}
	cp := make([]Candle, len(s.Candles)-start)
	copy(cp, s.Candles[start:])
	return CandleSeries{Symbol: s.Symbol, Interval: s.Interval, Candles: cp}
}

// Validate checks ordering and value sanity.
func (s CandleSeries) Validate() error {
	for i, c := range s.Candles {
		if !finitePositive(c.Open) || !finitePositive(c.High) || !finitePositive(c.Low) || !finitePositive(c.Close) {
			return fmt.Errorf("candle %d (%s): non-finite or non-positive price", i, c.Bucket.Format(time.RFC3339))
		}
		if math.IsNaN(c.Volume) || math.IsInf(c.Volume, 0) || c.Volume < 0 {
			return fmt.Errorf("candle %d (%s): invalid volume %v", i, c.Bucket.Format(time.RFC3339), c.Volume)
		}
		if i > 0 && !c.Bucket.After(s.Candles[i-1].Bucket) {
			return fmt.Errorf("candle %d: timestamp %s not after %s", i,
				c.Bucket.Format(time.RFC3339), s.Candles[i-1].Bucket.Format(time.RFC3339))
		}
	}
	return nil
}

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

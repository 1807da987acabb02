// Package correlation builds the filtered cross-asset return correlation matrix.
package correlation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	"PolyChannel/internal/services/features"
	applogger "PolyChannel/pkg/logger"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultThreshold  = 0.7
	DefaultMinOverlap = 30
)

type Analyzer struct {
	method     models.CorrelationMethod
	threshold  float64
	minOverlap int
	l          *applogger.Logger
}

type Option func(*Analyzer)

func WithMethod(m models.CorrelationMethod) Option {
	return func(a *Analyzer) { a.method = m }
}

func WithThreshold(t float64) Option {
	return func(a *Analyzer) { a.threshold = t }
}

func WithMinOverlap(n int) Option {
	return func(a *Analyzer) { a.minOverlap = n }
}

func WithLogger(l *applogger.Logger) Option {
	return func(a *Analyzer) { a.l = l.Component("correlation") }
}

func New(opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		method:     models.Pearson,
		threshold:  DefaultThreshold,
		minOverlap: DefaultMinOverlap,
		l:          applogger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.method != models.Pearson && a.method != models.Spearman {
		return nil, fmt.Errorf("%w: correlation method %q", errs.ErrInvalidConfig, a.method)
	}
	if a.threshold < 0 || a.threshold >= 1 {
		return nil, fmt.Errorf("%w: correlation threshold %v outside [0, 1)", errs.ErrInvalidConfig, a.threshold)
	}
	if a.minOverlap < 3 {
		return nil, fmt.Errorf("%w: correlation min overlap %d below 3", errs.ErrInvalidConfig, a.minOverlap)
	}
	return a, nil
}

// Analyze aligns the series on shared timestamps and returns every pair whose return
// correlation exceeds the threshold in absolute value. While the common overlap is
// below the minimum, the series whose removal recovers the most shared bars is excluded.
func (a *Analyzer) Analyze(series map[string]models.CandleSeries) models.CorrelationReport {
	rep := models.CorrelationReport{
		Method:    a.method,
		Threshold: a.threshold,
		Symbols:   []string{},
		Excluded:  []string{},
		Pairs:     []models.CorrelationPair{},
	}

	included := make([]string, 0, len(series))
	for sym := range series {
		included = append(included, sym)
	}
	sort.Strings(included)

	var common []time.Time
	for len(included) >= 2 {
		common = intersect(series, included)
		if len(common) >= a.minOverlap {
			break
		}
		drop := dropCandidate(series, included)
		rep.Excluded = append(rep.Excluded, included[drop])
		included = append(included[:drop], included[drop+1:]...)
	}
	sort.Strings(rep.Excluded)

	if len(included) < 2 || len(common) < a.minOverlap {
		a.l.Warn("correlation skipped: not enough overlapping series",
			applogger.Int("series", len(series)),
			applogger.Strings("excluded", rep.Excluded),
		)
		return rep
	}
	rep.Symbols = included
	rep.Aligned = len(common)

	returns := make([][]float64, len(included))
	for i, sym := range included {
		returns[i] = features.SimpleReturns(alignedCloses(series[sym], common))
		if a.method == models.Spearman {
			returns[i] = ranks(returns[i])
		}
	}

	for i := 0; i < len(included); i++ {
		for j := i + 1; j < len(included); j++ {
			c := stat.Correlation(returns[i], returns[j], nil)
			if math.IsNaN(c) || math.IsInf(c, 0) {
				continue
			}
			if math.Abs(c) <= a.threshold {
				continue
			}
			rep.Pairs = append(rep.Pairs, models.CorrelationPair{
				SymbolA:      included[i],
				SymbolB:      included[j],
				Coefficient:  clamp(c),
				Method:       a.method,
				Observations: len(returns[i]),
			})
		}
	}

	a.l.Info("correlation computed",
		applogger.Int("symbols", len(included)),
		applogger.Int("aligned", rep.Aligned),
		applogger.Int("pairs", len(rep.Pairs)),
		applogger.String("method", string(a.method)),
	)
	return rep
}

func intersect(series map[string]models.CandleSeries, symbols []string) []time.Time {
	counts := make(map[int64]int)
	for _, sym := range symbols {
		for _, c := range series[sym].Candles {
			counts[c.Bucket.UnixNano()]++
		}
	}
	out := make([]time.Time, 0, len(counts))
	for ts, n := range counts {
		if n == len(symbols) {
			out = append(out, time.Unix(0, ts).UTC())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// dropCandidate returns the index of the symbol whose removal leaves the largest common
// overlap. Ties drop the series with fewer bars, then the later symbol; symbols are sorted.
func dropCandidate(series map[string]models.CandleSeries, symbols []string) int {
	k := len(symbols)
	counts := make(map[int64]int)
	for _, sym := range symbols {
		for _, c := range series[sym].Candles {
			counts[c.Bucket.UnixNano()]++
		}
	}
	// Without symbol i the overlap is every bar shared by all k, plus the bars shared by
	// the other k-1 that i lacks.
	full, missingOne := 0, 0
	for _, n := range counts {
		switch n {
		case k:
			full++
		case k - 1:
			missingOne++
		}
	}

	best, bestOverlap := -1, -1
	for i, sym := range symbols {
		held := 0
		for _, c := range series[sym].Candles {
			if counts[c.Bucket.UnixNano()] == k-1 {
				held++
			}
		}
		overlap := full + missingOne - held
		switch {
		case best < 0, overlap > bestOverlap:
			best, bestOverlap = i, overlap
		case overlap == bestOverlap && series[sym].Len() <= series[symbols[best]].Len():
			best = i
		}
	}
	return best
}

func alignedCloses(s models.CandleSeries, common []time.Time) []float64 {
	byTS := make(map[int64]float64, s.Len())
	for _, c := range s.Candles {
		byTS[c.Bucket.UnixNano()] = c.Close
	}
	out := make([]float64, len(common))
	for i, ts := range common {
		out[i] = byTS[ts.UnixNano()]
	}
	return out
}

// ranks assigns 1-based ranks with ties sharing their average rank.
func ranks(xs []float64) []float64 {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	out := make([]float64, len(xs))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && xs[idx[j+1]] == xs[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}

func clamp(c float64) float64 {
	return math.Max(-1, math.Min(1, c))
}

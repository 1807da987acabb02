package optimizer

import (
	"hash/fnv"
	"math"
	"math/rand"

	"PolyChannel/internal/domain/models"
)

const (
	ModeGrid   = "grid"
	ModeRandom = "random"
)

// Bounds is the searchable region of the channel space.
type Bounds struct {
	DegreeMin    int     `validate:"gte=1"`
	DegreeMax    int     `validate:"gtefield=DegreeMin"`
	KStdMin      float64 `validate:"gt=0"`
	KStdMax      float64 `validate:"gtefield=KStdMin"`
	KStdStep     float64 `validate:"gt=0"`
	LookbackMin  int     `validate:"gte=2"`
	LookbackMax  int     `validate:"gtefield=LookbackMin"`
	LookbackStep int     `validate:"gte=1"`
}

// DefaultBounds covers degree [2,6], kstd [1.0,3.0] and lookback [30,720].
func DefaultBounds() Bounds {
	return Bounds{
		DegreeMin: 2, DegreeMax: 6,
		KStdMin: 1.0, KStdMax: 3.0, KStdStep: 0.25,
		LookbackMin: 30, LookbackMax: 720, LookbackStep: 30,
	}
}

// AssetSeed derives a per-asset seed so results do not depend on dispatch order.
func AssetSeed(runSeed int64, symbol string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	return runSeed ^ int64(h.Sum64())
}

func roundKStd(k float64) float64 {
	return math.Round(k*1e6) / 1e6
}

func (b Bounds) kstds() []float64 {
	var out []float64
	for i := 0; ; i++ {
		k := roundKStd(b.KStdMin + float64(i)*b.KStdStep)
		if k > b.KStdMax+1e-9 {
			break
		}
		out = append(out, k)
	}
	return out
}

// lookbacks steps from LookbackMin to upper and always includes upper itself.
func (b Bounds) lookbacks(upper int) []int {
	var out []int
	for lb := b.LookbackMin; lb <= upper; lb += b.LookbackStep {
		out = append(out, lb)
	}
	if len(out) > 0 && out[len(out)-1] != upper {
		out = append(out, upper)
	}
	return out
}

// grid enumerates the space in (degree, kstd, lookback) order, skipping skip.
func (b Bounds) grid(upper int, skip models.ChannelConfig) []models.ChannelConfig {
	ks := b.kstds()
	lbs := b.lookbacks(upper)
	out := make([]models.ChannelConfig, 0, (b.DegreeMax-b.DegreeMin+1)*len(ks)*len(lbs))
	for d := b.DegreeMin; d <= b.DegreeMax; d++ {
		for _, k := range ks {
			for _, lb := range lbs {
				c := models.ChannelConfig{Degree: d, KStd: k, Lookback: lb}
				if c == skip {
					continue
				}
				out = append(out, c)
			}
		}
	}
	return out
}

// stride picks n evenly spaced elements, keeping order.
func stride(all []models.ChannelConfig, n int) []models.ChannelConfig {
	if n >= len(all) {
		return all
	}
	if n <= 0 {
		return nil
	}
	out := make([]models.ChannelConfig, 0, n)
	for k := 0; k < n; k++ {
		out = append(out, all[k*len(all)/n])
	}
	return out
}

// sampler draws random configurations with continuous kstd.
type sampler struct {
	rng    *rand.Rand
	b      Bounds
	upper  int
	lbSpan int
}

func newSampler(seed int64, b Bounds, upper int) *sampler {
	return &sampler{rng: rand.New(rand.NewSource(seed)), b: b, upper: upper, lbSpan: upper - b.LookbackMin + 1}
}

func (s *sampler) next() models.ChannelConfig {
	return models.ChannelConfig{
		Degree:   s.b.DegreeMin + s.rng.Intn(s.b.DegreeMax-s.b.DegreeMin+1),
		KStd:     roundKStd(s.b.KStdMin + s.rng.Float64()*(s.b.KStdMax-s.b.KStdMin)),
		Lookback: s.b.LookbackMin + s.rng.Intn(s.lbSpan),
	}
}

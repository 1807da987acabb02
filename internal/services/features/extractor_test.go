package features

import (
	"math"
	"testing"

	"PolyChannel/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func TestSimpleReturns(t *testing.T) {
	got := SimpleReturns([]float64{100, 110, 99})
	assert.InDeltaSlice(t, []float64{0.10, -0.10}, got, 1e-12)

	assert.Nil(t, SimpleReturns([]float64{100}))

	withZero := SimpleReturns([]float64{0, 5})
	assert.True(t, math.IsNaN(withZero[0]))
}

func TestLogReturns(t *testing.T) {
	candles := []models.Candle{{Close: 100}, {Close: 200}, {Close: 100}}
	got := LogReturns(candles)
	assert.InDeltaSlice(t, []float64{math.Ln2, -math.Ln2}, got, 1e-12)
}

func TestRealizedVolatility(t *testing.T) {
	flat := []float64{0.01, 0.01, 0.01, 0.01}
	assert.InDelta(t, 0, RealizedVolatility(flat, 0, 365), 1e-12)

	alt := []float64{0.01, -0.01, 0.01, -0.01}
	// sample std of the alternating series is sqrt(4/3)*0.01
	want := math.Sqrt(4.0/3.0) * 0.01 * math.Sqrt(365)
	assert.InDelta(t, want, RealizedVolatility(alt, 4, 365), 1e-12)

	assert.Equal(t, 0.0, RealizedVolatility(alt, 10, 365))
}

func TestWindowReturn(t *testing.T) {
	assert.InDelta(t, 25.0, WindowReturn([]float64{80, 90, 100}), 1e-12)
	assert.Equal(t, 0.0, WindowReturn(nil))
}

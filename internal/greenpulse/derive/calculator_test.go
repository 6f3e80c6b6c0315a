package derive

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamiliesHelpedBoundaries(t *testing.T) {
	tests := []struct {
		coins float64
		want  int
	}{
		{0, 0},
		{-10, 0},
		{1, 1},
		{49, 1},
		{50, 1},
		{51, 2},
		{100, 2},
		{101, 3},
		{math.NaN(), 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FamiliesHelped(tt.coins), "coins=%v", tt.coins)
	}
}

func TestFamiliesHelpedMonotonic(t *testing.T) {
	prev := FamiliesHelped(0)
	for c := 0.0; c <= 2000; c += 0.5 {
		got := FamiliesHelped(c)
		assert.GreaterOrEqual(t, got, prev, "coins=%v", c)
		prev = got
	}

	// 超出 int 范围的金额饱和，不回绕
	large := []float64{100, 1e12, 1e18, 1e300, math.MaxFloat64, math.Inf(1)}
	prev = 0
	for _, c := range large {
		got := FamiliesHelped(c)
		assert.GreaterOrEqual(t, got, prev, "coins=%v", c)
		prev = got
	}
	assert.Equal(t, math.MaxInt, FamiliesHelped(1e300))
	assert.Equal(t, math.MaxInt, FamiliesHelped(math.Inf(1)))
	assert.Equal(t, 20000000000, FamiliesHelped(1e12))
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, 0.0, PercentChange(0, 0))
	assert.Equal(t, 100.0, PercentChange(5, 0))
	assert.Equal(t, 0.0, PercentChange(-5, 0))
	assert.Equal(t, 50.0, PercentChange(150, 100))
	assert.Equal(t, -25.0, PercentChange(75, 100))
	assert.Equal(t, 0.0, PercentChange(math.NaN(), 1))
}

func TestConversionRate(t *testing.T) {
	t.Run("partial coverage", func(t *testing.T) {
		got := ConversionRate(200, 0.1, 80)
		assert.True(t, got.Defined)
		assert.False(t, got.Capped)
		assert.Equal(t, "20", got.CreditValue.String())
		assert.Equal(t, 25.0, got.Percent)
	})

	t.Run("capped at 100", func(t *testing.T) {
		got := ConversionRate(5000, 0.1, 80)
		assert.True(t, got.Defined)
		assert.True(t, got.Capped)
		assert.Equal(t, 100.0, got.Percent)
	})

	t.Run("zero bill is flagged not divided", func(t *testing.T) {
		got := ConversionRate(200, 0.1, 0)
		assert.False(t, got.Defined)
		assert.Zero(t, got.Percent)
		assert.False(t, math.IsNaN(got.Percent))
		assert.Equal(t, "20", got.CreditValue.String())
	})

	t.Run("invalid inputs", func(t *testing.T) {
		for _, c := range []Coverage{
			ConversionRate(math.NaN(), 0.1, 10),
			ConversionRate(10, math.Inf(1), 10),
			ConversionRate(10, 0.1, math.Inf(1)),
			ConversionRate(-1, 0.1, 10),
		} {
			assert.False(t, c.Defined)
			assert.Zero(t, c.Percent)
		}
	})
}

func TestNiceAxisMax(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, DefaultAxisMax},
		{-3, DefaultAxisMax},
		{1, 1},
		{1.2, 2},
		{3, 5},
		{7, 10},
		{10, 10},
		{11, 20},
		{45, 50},
		{180, 200},
		{1000, 1000},
		{0.3, 0.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NiceAxisMax(tt.in), 1e-9, "in=%v", tt.in)
	}
}

func TestNiceAxisMaxNeverBelowObserved(t *testing.T) {
	for v := 0.0; v < 100000; v = v*1.07 + 0.13 {
		assert.GreaterOrEqual(t, NiceAxisMax(v), v, "v=%v", v)
	}
	for exp := -6; exp <= 12; exp++ {
		v := math.Pow(10, float64(exp))
		assert.GreaterOrEqual(t, NiceAxisMax(v), v)
		assert.GreaterOrEqual(t, NiceAxisMax(math.Nextafter(v, math.Inf(1))), v)
	}
}

func TestNiceAxisMaxStaysFinite(t *testing.T) {
	for _, v := range []float64{math.Inf(1), math.MaxFloat64, 1.5e308, 9e307} {
		got := NiceAxisMax(v)
		assert.False(t, math.IsInf(got, 0), "v=%v", v)
		assert.GreaterOrEqual(t, got, math.Min(v, math.MaxFloat64), "v=%v", v)
	}

	ticks := AxisTicks(NiceAxisMax(math.Inf(1)), 5)
	for _, tick := range ticks {
		assert.False(t, math.IsInf(tick, 0))
	}

	_, err := json.Marshal(map[string]any{"axisMax": NiceAxisMax(math.Inf(1)), "ticks": ticks})
	require.NoError(t, err)
}

func TestAxisTicks(t *testing.T) {
	assert.Equal(t, []float64{0, 5, 10, 15, 20}, AxisTicks(20, 4))
	assert.Equal(t, []float64{0, 20}, AxisTicks(20, 0))
}

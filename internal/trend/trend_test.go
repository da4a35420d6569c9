package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/evolab/internal/models"
)

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func linear(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestSlope(t *testing.T) {
	tests := []struct {
		name string
		ys   []float64
		want float64
	}{
		{"empty", nil, 0},
		{"single point", []float64{0.4}, 0},
		{"flat", repeat(0.8, 30), 0},
		{"rising", linear(0.1, 0.05, 10), 0.05},
		{"falling", linear(1, -0.02, 25), -0.02},
		{"two points", []float64{0, 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Slope(tt.ys), 1e-12)
		})
	}
}

func TestMean(t *testing.T) {
	_, ok := Mean(nil)
	assert.False(t, ok, "empty series must not produce a mean")

	m, ok := Mean([]float64{0.2, 0.4, 0.6})
	require.True(t, ok)
	assert.InDelta(t, 0.4, m, 1e-12)
}

func TestDetect_FlatSeriesConvergesEarly(t *testing.T) {
	got := Detect(repeat(0.8, 50), 20, 0.001)

	require.True(t, got.Converged)
	assert.GreaterOrEqual(t, got.Index, 20)
	assert.LessOrEqual(t, got.Index, 29)
}

func TestDetect_RisingSeriesNeverConverges(t *testing.T) {
	got := Detect(linear(0, 0.05, 40), 20, 0.001)

	assert.False(t, got.Converged)
	assert.Equal(t, models.NotConverged, got.Index)
}

func TestDetect_InsufficientData(t *testing.T) {
	got := Detect(repeat(0.5, 39), 20, 0.001)
	assert.Equal(t, models.NoConvergence(), got)
}

func TestDetect_FindsFirstFlatWindow(t *testing.T) {
	// Rising for 30 points, flat afterwards. The first window that is entirely
	// flat starts at index 30, so i-window == 30 gives i == 35 with window 5.
	series := append(linear(0, 0.1, 30), repeat(3.0, 30)...)

	got := Detect(series, 5, 0.001)

	require.True(t, got.Converged)
	assert.Equal(t, 35, got.Index)
}

func TestDetect_WindowStaysInRange(t *testing.T) {
	// Exactly 2*window points: the scan range [w, len-w-1] is empty.
	got := Detect(repeat(0.3, 10), 5, 0.001)
	assert.False(t, got.Converged)

	// One more point admits exactly i == w.
	got = Detect(repeat(0.3, 11), 5, 0.001)
	require.True(t, got.Converged)
	assert.Equal(t, 5, got.Index)
}

func TestDetector_Defaults(t *testing.T) {
	var zero Detector
	assert.Equal(t, DefaultDetector().Detect(repeat(0.8, 50)), zero.Detect(repeat(0.8, 50)))
}

func TestGlobalConvergence(t *testing.T) {
	flat := repeat(0.1, 15)
	got := GlobalConvergence(flat, 10, Slope(flat), 0.001)
	require.True(t, got.Converged)
	assert.Equal(t, 10, got.Index)

	rising := linear(0, 0.05, 15)
	got = GlobalConvergence(rising, 10, Slope(rising), 0.001)
	assert.False(t, got.Converged)

	// Start past the end: nothing to scan.
	got = GlobalConvergence(flat, 20, 0, 0.001)
	assert.False(t, got.Converged)
}

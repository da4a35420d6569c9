// Package trend fits linear trends to performance series and locates the
// point where a series stops moving.
//
// Two convergence heuristics live here and are deliberately kept apart:
// Detect re-fits the slope over a sliding window, while GlobalConvergence
// compares one precomputed slope against the threshold.
package trend

import (
	"math"

	"github.com/nvandessel/evolab/internal/constants"
	"github.com/nvandessel/evolab/internal/models"
)

// Slope returns the least-squares slope of ys against their indices
// 0..len(ys)-1. Series shorter than two points have slope 0.
func Slope(ys []float64) float64 {
	n := len(ys)
	if n < 2 {
		return 0
	}

	// Centered form keeps flat series at exactly zero.
	meanX := float64(n-1) / 2
	meanY, _ := Mean(ys)

	var sxy, sxx float64
	for i, y := range ys {
		dx := float64(i) - meanX
		sxy += dx * (y - meanY)
		sxx += dx * dx
	}
	if sxx == 0 {
		return 0
	}
	return sxy / sxx
}

// Mean returns the arithmetic mean and false for an empty slice.
func Mean(ys []float64) (float64, bool) {
	if len(ys) == 0 {
		return 0, false
	}
	var sum float64
	for _, y := range ys {
		sum += y
	}
	return sum / float64(len(ys)), true
}

// Detector scans a series for its first stable window.
type Detector struct {
	// WindowSize is the half-width of the fitted window. Default: 20.
	WindowSize int

	// Threshold is the slope magnitude considered flat. Default: 0.001.
	Threshold float64
}

// DefaultDetector returns a detector with the reference window and threshold.
func DefaultDetector() Detector {
	return Detector{
		WindowSize: constants.DefaultConvergenceWindow,
		Threshold:  constants.DefaultConvergenceThreshold,
	}
}

// Detect runs the windowed scan with the detector's settings. Non-positive
// settings fall back to the defaults.
func (d Detector) Detect(series []float64) models.ConvergenceResult {
	window := d.WindowSize
	if window <= 0 {
		window = constants.DefaultConvergenceWindow
	}
	threshold := d.Threshold
	if threshold <= 0 {
		threshold = constants.DefaultConvergenceThreshold
	}
	return Detect(series, window, threshold)
}

// Detect returns the first index i in [windowSize, len(series)-windowSize-1]
// whose window series[i-windowSize : i+windowSize] has an absolute slope
// below threshold. Series shorter than 2*windowSize never converge.
//
// The scan stops at the first stable point; later oscillation is not
// re-checked.
func Detect(series []float64, windowSize int, threshold float64) models.ConvergenceResult {
	if windowSize <= 0 || len(series) < windowSize*2 {
		return models.NoConvergence()
	}

	for i := windowSize; i < len(series)-windowSize; i++ {
		window := series[i-windowSize : i+windowSize]
		if math.Abs(Slope(window)) < threshold {
			return models.ConvergedAt(i)
		}
	}
	return models.NoConvergence()
}

// GlobalConvergence is the coarse heuristic used by per-history analysis:
// scanning from start, the first index is reported when the single global
// slope is already below threshold. Because the slope does not change
// along the scan, the result is either start or not converged.
func GlobalConvergence(series []float64, start int, slope, threshold float64) models.ConvergenceResult {
	for i := start; i < len(series); i++ {
		if math.Abs(slope) < threshold {
			return models.ConvergedAt(i)
		}
	}
	return models.NoConvergence()
}

// Package scrollmap converts a host element's position in the viewport into a frame index.
package scrollmap

import "math"

// Extent is the host element's box relative to the viewport, read fresh on every computation.
// Top is the distance from the viewport's top edge and becomes negative once scrolled past.
type Extent struct {
	Top    float64
	Height float64
}

// Fraction returns how much of the element's own height has scrolled past the viewport top,
// clamped to [0, 1].
func Fraction(top, height float64) float64 {
	if height <= 0 {
		return 0
	}
	f := -top / height
	switch {
	case math.IsNaN(f):
		return 0
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// ComputeFrame maps the scroll position to a frame in [0, totalFrames].
func ComputeFrame(top, height float64, totalFrames int) int {
	if totalFrames <= 0 {
		return 0
	}
	return int(math.Round(Fraction(top, height) * float64(totalFrames)))
}

// Frame is ComputeFrame applied to e.
func (e Extent) Frame(totalFrames int) int {
	return ComputeFrame(e.Top, e.Height, totalFrames)
}

package render

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// Fit selects how a frame is placed on the surface.
type Fit int

const (
	// FitCover scales the frame to cover the whole surface and centers the overflow.
	FitCover Fit = iota
	// FitNone draws the frame at the origin at its natural size.
	FitNone
)

func (f Fit) String() string {
	if f == FitNone {
		return "none"
	}
	return "cover"
}

// ParseFit accepts "cover" (or "") and "none".
func ParseFit(s string) (Fit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cover":
		return FitCover, nil
	case "none":
		return FitNone, nil
	}
	return FitCover, fmt.Errorf("unknown fit %q", s)
}

// Rect is a placement in surface coordinates. It may extend past the surface.
type Rect struct {
	X, Y, W, H float64
}

// CoverRect returns the placement that preserves the source aspect ratio while covering
// the whole dstW x dstH rectangle, centered on both axes.
func CoverRect(dstW, dstH, srcW, srcH float64) Rect {
	return scaled(math.Max, dstW, dstH, srcW, srcH)
}

// ContainRect is the letterboxed counterpart of CoverRect: the whole source stays visible.
func ContainRect(dstW, dstH, srcW, srcH float64) Rect {
	return scaled(math.Min, dstW, dstH, srcW, srcH)
}

func scaled(pick func(a, b float64) float64, dstW, dstH, srcW, srcH float64) Rect {
	if srcW <= 0 || srcH <= 0 {
		return Rect{}
	}
	scale := pick(dstW/srcW, dstH/srcH)
	w, h := srcW*scale, srcH*scale
	return Rect{
		X: (dstW - w) / 2,
		Y: (dstH - h) / 2,
		W: w,
		H: h,
	}
}

// Place returns where a srcW x srcH frame goes on a dstW x dstH surface.
func Place(fit Fit, dstW, dstH, srcW, srcH int) Rect {
	if fit == FitNone {
		return Rect{W: float64(srcW), H: float64(srcH)}
	}
	return CoverRect(float64(dstW), float64(dstH), float64(srcW), float64(srcH))
}

// Clip intersects placement r with a dstW x dstH surface and returns the visible part of
// the surface together with the matching region of a srcW x srcH source. ok is false when
// nothing is visible.
func Clip(r Rect, dstW, dstH, srcW, srcH int) (src image.Rectangle, dst Rect, ok bool) {
	if r.W <= 0 || r.H <= 0 || srcW <= 0 || srcH <= 0 {
		return image.Rectangle{}, Rect{}, false
	}
	x0, y0 := math.Max(r.X, 0), math.Max(r.Y, 0)
	x1, y1 := math.Min(r.X+r.W, float64(dstW)), math.Min(r.Y+r.H, float64(dstH))
	if x1 <= x0 || y1 <= y0 {
		return image.Rectangle{}, Rect{}, false
	}

	sx, sy := float64(srcW)/r.W, float64(srcH)/r.H
	src = image.Rect(
		int(math.Floor((x0-r.X)*sx+1e-9)),
		int(math.Floor((y0-r.Y)*sy+1e-9)),
		int(math.Ceil((x1-r.X)*sx-1e-9)),
		int(math.Ceil((y1-r.Y)*sy-1e-9)),
	).Intersect(image.Rect(0, 0, srcW, srcH))
	if src.Empty() {
		return image.Rectangle{}, Rect{}, false
	}
	return src, Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}, true
}

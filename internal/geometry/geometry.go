// Package geometry holds the aspect-ratio math shared by live capture and
// interactive cropping. All coordinates are float64 in whatever space the
// caller works in (device pixels, displayed pixels or source pixels).
package geometry

import (
	"image"
	"math"
)

const (
	// MinZoom is the smallest zoom percentage a crop box may shrink to.
	MinZoom = 20.0
	// MaxZoom is the zoom percentage at which the crop box is the largest
	// aspect-correct rectangle that fits the source.
	MaxZoom = 100.0
	// DefaultZoom is the zoom a freshly loaded image starts at.
	DefaultZoom = 80.0

	// Epsilon is the tolerance used when comparing aspect ratios.
	Epsilon = 1e-9
)

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
type Rect struct {
	X, Y float64
	W, H float64
}

// Aspect returns W/H, or 0 for an empty rectangle.
func (r Rect) Aspect() float64 {
	if r.H == 0 {
		return 0
	}
	return r.W / r.H
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Within reports whether r lies entirely inside a w x h area anchored at the origin.
func (r Rect) Within(w, h float64) bool {
	return r.X >= -Epsilon && r.Y >= -Epsilon &&
		r.X+r.W <= w+Epsilon && r.Y+r.H <= h+Epsilon
}

// Scale multiplies origin and size independently on each axis.
func (r Rect) Scale(sx, sy float64) Rect {
	return Rect{X: r.X * sx, Y: r.Y * sy, W: r.W * sx, H: r.H * sy}
}

// Image rounds the rectangle to integer pixel bounds.
func (r Rect) Image() image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	x1 := int(math.Round(r.X + r.W))
	y1 := int(math.Round(r.Y + r.H))
	return image.Rect(x0, y0, x1, y1)
}

// FitRect returns the largest rectangle with the given aspect ratio that fits
// inside a srcW x srcH area, centered on the long axis.
func FitRect(srcW, srcH, aspect float64) Rect {
	if srcW <= 0 || srcH <= 0 || aspect <= 0 {
		return Rect{}
	}
	srcAspect := srcW / srcH
	if srcAspect > aspect {
		w := srcH * aspect
		return Rect{X: (srcW - w) / 2, Y: 0, W: w, H: srcH}
	}
	h := srcW / aspect
	return Rect{X: 0, Y: (srcH - h) / 2, W: srcW, H: h}
}

// ClampBox moves the origin of box so it stays fully inside a boundsW x boundsH
// area. The size is left untouched; a box larger than the bounds is pinned to 0.
func ClampBox(box Rect, boundsW, boundsH float64) Rect {
	box.X = clamp(box.X, 0, math.Max(0, boundsW-box.W))
	box.Y = clamp(box.Y, 0, math.Max(0, boundsH-box.H))
	return box
}

// ClampZoom limits a zoom percentage to [MinZoom, MaxZoom].
func ClampZoom(zoom float64) float64 {
	if math.IsNaN(zoom) {
		return DefaultZoom
	}
	return clamp(zoom, MinZoom, MaxZoom)
}

// BoxForZoom sizes a crop box for a srcW x srcH image. At 100% the box is the
// fitted rectangle; lower zoom shrinks both sides proportionally. The origin of
// the result is always (0, 0).
func BoxForZoom(srcW, srcH, aspect, zoom float64) Rect {
	if srcW <= 0 || srcH <= 0 || aspect <= 0 {
		return Rect{}
	}
	z := ClampZoom(zoom) / 100

	var w, h float64
	if srcW/srcH > aspect {
		h = srcH * z
		w = h * aspect
	} else {
		w = srcW * z
		h = w / aspect
	}

	// Degrade to the full source when rounding pushes a side past the bounds.
	if w > srcW {
		w = srcW
		h = w / aspect
	}
	if h > srcH {
		h = srcH
		w = h * aspect
	}
	return Rect{W: w, H: h}
}

// Center places box in the middle of a w x h area.
func Center(box Rect, w, h float64) Rect {
	box.X = (w - box.W) / 2
	box.Y = (h - box.H) / 2
	return ClampBox(box, w, h)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

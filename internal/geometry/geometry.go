package geometry

import (
	"image"
	"math"
)

const (
	// MinZoom and MaxZoom bound every viewport this package produces.
	MinZoom = 1.0
	MaxZoom = 10.0

	// CenterMargin leaves a border around a rectangle centred by CenterOn.
	CenterMargin = 0.9
)

// Point is a position in any of the three spaces.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Mul returns p scaled by k.
func (p Point) Mul(k float64) Point { return Point{p.X * k, p.Y * k} }

// Size is a width and height.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SizeOf returns the pixel size of b.
func SizeOf(b image.Rectangle) Size {
	return Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// Empty reports whether s has no area.
func (s Size) Empty() bool { return !(s.Width > 0 && s.Height > 0) }

// Center returns the midpoint of a box of size s anchored at the origin.
func (s Size) Center() Point { return Point{s.Width / 2, s.Height / 2} }

// Rect is an axis-aligned rectangle given by its top-left corner and size.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectFrom converts an integer rectangle.
func RectFrom(r image.Rectangle) Rect {
	return Rect{
		X:      float64(r.Min.X),
		Y:      float64(r.Min.Y),
		Width:  float64(r.Dx()),
		Height: float64(r.Dy()),
	}
}

// Origin returns the top-left corner.
func (r Rect) Origin() Point { return Point{r.X, r.Y} }

// Size returns the rectangle's extent.
func (r Rect) Size() Size { return Size{r.Width, r.Height} }

// Center returns the midpoint.
func (r Rect) Center() Point { return Point{r.X + r.Width/2, r.Y + r.Height/2} }

// Contains reports whether p lies inside r or on its edge.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Viewport is the transient zoom/pan state of a page view. Pan is in
// display units.
type Viewport struct {
	Zoom float64 `json:"zoom"`
	Pan  Point   `json:"pan"`
}

// Identity is the untransformed viewport.
func Identity() Viewport { return Viewport{Zoom: 1} }

// Zoomed reports whether the viewport is in zoom mode (scale above 1).
func (v Viewport) Zoomed() bool { return v.zoom() > 1 }

func (v Viewport) zoom() float64 {
	if !(v.Zoom >= MinZoom) {
		return MinZoom
	}
	return v.Zoom
}

// PercentToPixel converts a percentage of dim to pixels.
func PercentToPixel(pct, dim float64) float64 {
	return pct / 100 * dim
}

// PixelToPercent converts a pixel offset along dim to a percentage. A
// non-positive dim yields 0.
func PixelToPercent(px, dim float64) float64 {
	if !(dim > 0) {
		return 0
	}
	return px / dim * 100
}

// PointToPixel converts a percentage point to source pixels of an image
// of size s.
func PointToPixel(pct Point, s Size) Point {
	return Point{PercentToPixel(pct.X, s.Width), PercentToPixel(pct.Y, s.Height)}
}

// PointToPercent converts a source pixel point to percentages.
func PointToPercent(px Point, s Size) Point {
	return Point{PixelToPercent(px.X, s.Width), PixelToPercent(px.Y, s.Height)}
}

// ClampPercent limits v to [0,100]. NaN becomes 0.
func ClampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// ClampPoint clamps both coordinates with ClampPercent.
func ClampPoint(p Point) Point {
	return Point{ClampPercent(p.X), ClampPercent(p.Y)}
}

// FitContain returns where an image of size img is drawn inside a
// container of size container when scaled to fit without cropping. The
// result is relative to the container's top-left and is centred on the
// letterboxed axis.
func FitContain(img, container Size) Rect {
	if img.Empty() || container.Empty() {
		return Rect{}
	}
	scale := math.Min(container.Width/img.Width, container.Height/img.Height)
	w := img.Width * scale
	h := img.Height * scale
	return Rect{
		X:      (container.Width - w) / 2,
		Y:      (container.Height - h) / 2,
		Width:  w,
		Height: h,
	}
}

// toDisplay applies the viewport transform to a container-local point.
func (v Viewport) toDisplay(p Point, container Size) Point {
	c := container.Center()
	return c.Add(v.Pan).Add(p.Sub(c).Mul(v.zoom()))
}

// fromDisplay inverts toDisplay.
func (v Viewport) fromDisplay(d Point, container Size) Point {
	c := container.Center()
	return c.Add(d.Sub(c).Sub(v.Pan).Mul(1 / v.zoom()))
}

// ClickToPercent maps a click in screen coordinates to a page percentage.
//
// container is the on-screen rectangle of the view. Clicks outside it
// (edges included as inside) are rejected with ok=false. Accepted clicks
// are inverted through the viewport and the letterbox and then clamped
// into [0,100], so a click on the letterbox margin lands on the nearest
// page edge.
func ClickToPercent(click Point, container Rect, img Size, vp Viewport) (Point, bool) {
	if !container.Contains(click) {
		return Point{}, false
	}
	fit := FitContain(img, container.Size())
	if fit.Width <= 0 || fit.Height <= 0 {
		return Point{}, false
	}

	local := vp.fromDisplay(click.Sub(container.Origin()), container.Size())
	q := local.Sub(fit.Origin())
	return ClampPoint(Point{
		X: PixelToPercent(q.X, fit.Width),
		Y: PixelToPercent(q.Y, fit.Height),
	}), true
}

// PercentToDisplay maps a page percentage to screen coordinates, the
// inverse of ClickToPercent for points on the page.
func PercentToDisplay(pct Point, container Rect, img Size, vp Viewport) Point {
	fit := FitContain(img, container.Size())
	p := fit.Origin().Add(PointToPixel(pct, fit.Size()))
	return vp.toDisplay(p, container.Size()).Add(container.Origin())
}

// DisplayScale is the number of display units per source pixel at the
// given viewport.
func DisplayScale(img, container Size, vp Viewport) float64 {
	if img.Empty() {
		return 0
	}
	return FitContain(img, container).Width / img.Width * vp.zoom()
}

// CenterOn returns the viewport that centres target (source pixels) in the
// container, zoomed so it fills the view minus CenterMargin. Zoom is
// clamped to [MinZoom, MaxZoom]; a degenerate target yields Identity.
func CenterOn(target Rect, img, container Size) Viewport {
	fit := FitContain(img, container)
	if fit.Width <= 0 || !(target.Width > 0 && target.Height > 0) {
		return Identity()
	}
	scale := fit.Width / img.Width

	rw := target.Width * scale
	rh := target.Height * scale
	zoom := math.Min(container.Width/rw, container.Height/rh) * CenterMargin
	zoom = math.Max(MinZoom, math.Min(MaxZoom, zoom))

	c := fit.Origin().Add(target.Center().Mul(scale))
	return Viewport{
		Zoom: zoom,
		Pan:  container.Center().Sub(c).Mul(zoom),
	}
}

// VisibleSourceRect returns the part of the image, in source pixels, that
// is visible through the container at the given viewport. The result is
// clamped to the image and may be empty if the page is panned out of view.
func VisibleSourceRect(vp Viewport, img, container Size) Rect {
	fit := FitContain(img, container)
	if fit.Width <= 0 {
		return Rect{}
	}
	scale := fit.Width / img.Width

	toSource := func(d Point) Point {
		p := vp.fromDisplay(d, container).Sub(fit.Origin())
		return p.Mul(1 / scale)
	}
	tl := toSource(Point{0, 0})
	br := toSource(Point{container.Width, container.Height})

	x0 := clamp(tl.X, 0, img.Width)
	y0 := clamp(tl.Y, 0, img.Height)
	x1 := clamp(br.X, 0, img.Width)
	y1 := clamp(br.Y, 0, img.Height)
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// ClampRect rounds r to whole pixels and clips it to an image of size img.
// When the image is non-empty the result always has at least one pixel, so
// it is a valid crop rectangle.
func ClampRect(r Rect, img Size) image.Rectangle {
	w := int(img.Width)
	h := int(img.Height)
	if w <= 0 || h <= 0 {
		return image.Rectangle{}
	}

	x0 := clampInt(int(math.Round(r.X)), 0, w-1)
	y0 := clampInt(int(math.Round(r.Y)), 0, h-1)
	x1 := clampInt(int(math.Round(r.X+r.Width)), x0+1, w)
	y1 := clampInt(int(math.Round(r.Y+r.Height)), y0+1, h)
	return image.Rect(x0, y0, x1, y1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

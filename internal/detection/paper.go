package detection

import (
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/transform"
)

// Options tunes the edge-density detector. Use DefaultOptions and override
// individual fields.
type Options struct {
	// WorkingSize is the long edge of the working raster, in pixels.
	WorkingSize int

	// Stride is the spacing of the sample grid in working pixels.
	Stride int

	// Offset is the distance to the neighbour compared against each sample.
	Offset int

	// Threshold is the minimum luminance difference (0-255) of an edge point.
	Threshold float64

	// MinEdgePoints is the minimum number of edge points for a detection.
	MinEdgePoints int

	// LowPercentile and HighPercentile select the rectangle edges from the
	// sorted edge coordinates, as fractions in [0,1].
	LowPercentile  float64
	HighPercentile float64

	// MinCoverage is the minimum area of the rectangle as a fraction of the
	// working raster.
	MinCoverage float64
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		WorkingSize:    300,
		Stride:         2,
		Offset:         2,
		Threshold:      30,
		MinEdgePoints:  50,
		LowPercentile:  0.05,
		HighPercentile: 0.95,
		MinCoverage:    0.2,
	}
}

// Result is the detector outcome. When Detected is false Bounds is empty.
type Result struct {
	Detected bool            `json:"detected"`
	Bounds   image.Rectangle `json:"bounds"`
}

// NotDetected is the "no confident answer" outcome.
var NotDetected = Result{}

// Fallback is the manual-crop rectangle used when detection fails: the
// whole image.
func Fallback(width, height int) image.Rectangle {
	return image.Rect(0, 0, width, height)
}

// SuggestCrop runs the detector with default options and also returns the
// rectangle a cropper should start from: the detected bounds, or Fallback.
func SuggestCrop(img image.Image) (Result, image.Rectangle) {
	res := DetectPaperBounds(img, DefaultOptions())
	if res.Detected || img == nil {
		return res, res.Bounds
	}
	b := img.Bounds()
	return res, Fallback(b.Dx(), b.Dy())
}

// DetectPaperBounds estimates the bounding rectangle of the document in img.
// It never fails: every input it cannot judge, nil included, is NotDetected.
func DetectPaperBounds(img image.Image, opts Options) Result {
	if img == nil {
		return NotDetected
	}

	opts = opts.normalize()
	src := img.Bounds()
	w, h := src.Dx(), src.Dy()
	if w <= 0 || h <= 0 {
		return NotDetected
	}

	work := workingRaster(img, opts.WorkingSize)
	wb := work.Bounds()
	ww, wh := wb.Dx(), wb.Dy()
	if ww <= 0 || wh <= 0 {
		return NotDetected
	}

	xs, ys := edgePoints(work, opts)
	if len(xs) < opts.MinEdgePoints || len(xs) == 0 {
		return NotDetected
	}

	sort.Ints(xs)
	sort.Ints(ys)
	x0, x1 := percentile(xs, opts.LowPercentile), percentile(xs, opts.HighPercentile)+1
	y0, y1 := percentile(ys, opts.LowPercentile), percentile(ys, opts.HighPercentile)+1

	area := float64((x1 - x0) * (y1 - y0))
	if x1 <= x0 || y1 <= y0 || area < opts.MinCoverage*float64(ww*wh) {
		return NotDetected
	}

	sx := float64(w) / float64(ww)
	sy := float64(h) / float64(wh)
	bounds := image.Rect(
		int(math.Floor(float64(x0)*sx)),
		int(math.Floor(float64(y0)*sy)),
		int(math.Ceil(float64(x1)*sx)),
		int(math.Ceil(float64(y1)*sy)),
	).Intersect(image.Rect(0, 0, w, h))
	if bounds.Empty() {
		return NotDetected
	}

	return Result{Detected: true, Bounds: bounds}
}

func (o Options) normalize() Options {
	d := DefaultOptions()
	if o.WorkingSize <= 0 {
		o.WorkingSize = d.WorkingSize
	}
	if o.Stride <= 0 {
		o.Stride = d.Stride
	}
	if o.Offset <= 0 {
		o.Offset = d.Offset
	}
	if o.MinEdgePoints < 0 {
		o.MinEdgePoints = 0
	}
	if !(o.HighPercentile > o.LowPercentile) || o.LowPercentile < 0 || o.HighPercentile > 1 {
		o.LowPercentile, o.HighPercentile = d.LowPercentile, d.HighPercentile
	}
	return o
}

// workingRaster returns an RGBA copy of img whose long edge is at most
// size pixels.
func workingRaster(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	long := w
	if h > long {
		long = h
	}
	if long <= size {
		return clone.AsRGBA(img)
	}

	scale := float64(size) / float64(long)
	ww := int(math.Max(1, math.Round(float64(w)*scale)))
	wh := int(math.Max(1, math.Round(float64(h)*scale)))
	return transform.Resize(img, ww, wh, transform.Linear)
}

// edgePoints samples the raster on a stride grid and returns the working
// coordinates of every sample whose luminance differs from its right or
// lower neighbour by more than the threshold.
func edgePoints(img *image.RGBA, opts Options) (xs, ys []int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	for y := 0; y < h; y += opts.Stride {
		for x := 0; x < w; x += opts.Stride {
			c := luminance(img, b.Min.X+x, b.Min.Y+y)

			edge := false
			if x+opts.Offset < w {
				cx := luminance(img, b.Min.X+x+opts.Offset, b.Min.Y+y)
				edge = math.Abs(c-cx) > opts.Threshold
			}
			if !edge && y+opts.Offset < h {
				cy := luminance(img, b.Min.X+x, b.Min.Y+y+opts.Offset)
				edge = math.Abs(c-cy) > opts.Threshold
			}
			if edge {
				xs = append(xs, x)
				ys = append(ys, y)
			}
		}
	}
	return xs, ys
}

// luminance converts a pixel to grayscale using ITU-R BT.601 weights.
func luminance(img *image.RGBA, x, y int) float64 {
	c := img.RGBAAt(x, y)
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

// percentile returns the element at fraction p of a sorted slice.
func percentile(sorted []int, p float64) int {
	i := int(p * float64(len(sorted)))
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	if i < 0 {
		i = 0
	}
	return sorted[i]
}

package compositor

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/ironsheep/grade-overlay-mcp/internal/geometry"
)

const (
	// strokeScale is the coloured stroke width relative to the glyph size.
	strokeScale = 0.12

	// outlineScale and minOutline size the white border on each side of
	// the coloured stroke.
	outlineScale = 0.03
	minOutline   = 2

	jointSegments = 16
)

// Glyph shapes in a unit box centred on the origin, Y down.
var (
	checkPath = []geometry.Point{{X: -0.35, Y: 0}, {X: -0.1, Y: 0.3}, {X: 0.4, Y: -0.35}}
	crossA    = []geometry.Point{{X: -0.3, Y: -0.3}, {X: 0.3, Y: 0.3}}
	crossB    = []geometry.Point{{X: -0.3, Y: 0.3}, {X: 0.3, Y: -0.3}}
)

// painter strokes polylines onto an RGBA canvas.
type painter struct {
	dst *image.RGBA
	z   vector.Rasterizer
}

func (p *painter) check(at geometry.Point, size float64, c color.Color) {
	p.marker(at, size, c, checkPath)
}

func (p *painter) cross(at geometry.Point, size float64, c color.Color) {
	p.marker(at, size, c, crossA, crossB)
}

// marker draws the white outline of every stroke first and the coloured
// strokes on top, so crossing strokes do not cut each other's outline.
func (p *painter) marker(at geometry.Point, size float64, c color.Color, paths ...[]geometry.Point) {
	width := size * strokeScale
	outline := width + 2*math.Max(minOutline, size*outlineScale)

	scaled := make([][]geometry.Point, len(paths))
	for i, path := range paths {
		scaled[i] = make([]geometry.Point, len(path))
		for j, q := range path {
			scaled[i][j] = at.Add(q.Mul(size))
		}
	}

	reach := size/2 + outline
	box := image.Rect(
		int(math.Floor(at.X-reach)), int(math.Floor(at.Y-reach)),
		int(math.Ceil(at.X+reach)), int(math.Ceil(at.Y+reach)),
	)

	p.stroke(scaled, outline, OutlineColor, box)
	p.stroke(scaled, width, c, box)
}

// stroke fills the union of all paths thickened to width, with round
// joints and caps, restricted to box.
func (p *painter) stroke(paths [][]geometry.Point, width float64, c color.Color, box image.Rectangle) {
	clip := box.Intersect(p.dst.Bounds())
	if clip.Empty() {
		return
	}
	origin := geometry.Point{X: float64(clip.Min.X), Y: float64(clip.Min.Y)}
	hw := width / 2

	p.z.Reset(clip.Dx(), clip.Dy())
	p.z.DrawOp = draw.Over
	for _, path := range paths {
		for i, q := range path {
			q = q.Sub(origin)
			p.disc(q, hw)
			if i == 0 {
				continue
			}
			p.quad(path[i-1].Sub(origin), q, hw)
		}
	}
	p.z.Draw(p.dst, clip, image.NewUniform(c), image.Point{})
}

// quad adds the rectangle covering segment a-b at half width hw.
func (p *painter) quad(a, b geometry.Point, hw float64) {
	d := b.Sub(a)
	l := math.Hypot(d.X, d.Y)
	if l == 0 {
		return
	}
	n := geometry.Point{X: -d.Y / l * hw, Y: d.X / l * hw}

	p.moveTo(a.Add(n))
	p.lineTo(b.Add(n))
	p.lineTo(b.Sub(n))
	p.lineTo(a.Sub(n))
	p.z.ClosePath()
}

// disc adds a polygonal circle. It winds the same way as quad so that
// overlapping coverage adds up instead of cancelling.
func (p *painter) disc(c geometry.Point, r float64) {
	for i := 0; i <= jointSegments; i++ {
		a := -2 * math.Pi * float64(i) / jointSegments
		q := geometry.Point{X: c.X + r*math.Cos(a), Y: c.Y + r*math.Sin(a)}
		if i == 0 {
			p.moveTo(q)
		} else {
			p.lineTo(q)
		}
	}
	p.z.ClosePath()
}

func (p *painter) moveTo(q geometry.Point) { p.z.MoveTo(float32(q.X), float32(q.Y)) }
func (p *painter) lineTo(q geometry.Point) { p.z.LineTo(float32(q.X), float32(q.Y)) }

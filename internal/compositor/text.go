package compositor

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/grade-overlay-mcp/internal/geometry"
)

var (
	boldOnce sync.Once
	boldFont *opentype.Font
	boldErr  error
)

func loadBold() (*opentype.Font, error) {
	boldOnce.Do(func() {
		boldFont, boldErr = opentype.Parse(gobold.TTF)
	})
	return boldFont, boldErr
}

// newFace returns a Go Bold face whose em is size pixels.
func newFace(size float64) (font.Face, error) {
	f, err := loadBold()
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}

// drawText writes s at p. With topLeft the text box starts at p; otherwise
// it is centred on p.
func drawText(dst *image.RGBA, face font.Face, s string, p geometry.Point, c color.Color, topLeft bool) {
	m := face.Metrics()
	x := fixed.Int26_6(p.X * 64)
	y := fixed.Int26_6(p.Y * 64)

	var dot fixed.Point26_6
	if topLeft {
		dot = fixed.Point26_6{X: x, Y: y + m.Ascent}
	} else {
		adv := font.MeasureString(face, s)
		dot = fixed.Point26_6{X: x - adv/2, Y: y + (m.Ascent-m.Descent)/2}
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  dot,
	}
	d.DrawString(s)
}

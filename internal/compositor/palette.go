package compositor

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Marker colours.
var (
	CorrectColor   = mustHex("#16a34a")
	IncorrectColor = mustHex("#dc2626")
	TextColor      = mustHex("#dc2626")
	OutlineColor   = color.RGBA{255, 255, 255, 255}
)

func mustHex(s string) color.RGBA {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{r, g, b, 255}
}

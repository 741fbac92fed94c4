package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/grade-overlay-mcp/internal/annotation"
	"github.com/ironsheep/grade-overlay-mcp/internal/geometry"
	"github.com/ironsheep/grade-overlay-mcp/internal/imaging"
)

// Quality is the JPEG quality of burned-in pages.
const Quality = 0.85

// BurnIn flattens anns onto the page and returns the result as a new asset.
// Annotations are drawn in order regardless of their PageIndex; use
// annotation.ForPage to select a page's markers. An empty list returns
// asset itself.
func BurnIn(asset imaging.Asset, anns []annotation.Annotation) (imaging.Asset, error) {
	if len(anns) == 0 {
		return asset, nil
	}

	img, err := imaging.Decode(asset.Data)
	if err != nil {
		return imaging.Asset{}, err
	}
	canvas, err := render(img, anns)
	if err != nil {
		return imaging.Asset{}, err
	}
	return imaging.EncodeAsset(canvas, Quality)
}

// render draws anns onto a copy of img anchored at (0,0).
func render(img image.Image, anns []annotation.Annotation) (*image.RGBA, error) {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	size := annotation.GlyphSize(float64(b.Dx()))
	pageSize := geometry.SizeOf(dst.Bounds())
	p := &painter{dst: dst}

	var face font.Face
	defer func() {
		if face != nil {
			_ = face.Close()
		}
	}()

	for _, a := range anns {
		at := geometry.PointToPixel(a.Position(), pageSize)
		switch a.Type {
		case annotation.Correct:
			p.check(at, size, CorrectColor)
		case annotation.Incorrect:
			p.cross(at, size, IncorrectColor)
		case annotation.Text:
			if a.Text == "" {
				continue
			}
			if face == nil {
				f, err := newFace(size)
				if err != nil {
					return nil, err
				}
				face = f
			}
			drawText(dst, face, a.Text, at, TextColor, a.IsScore())
		}
	}
	return dst, nil
}

// PageError reports a page that could not be burned in.
type PageError struct {
	Index int
	Err   error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Index, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// BurnInPages burns each page's annotations into it, running up to limit
// pages at once (limit <= 0 means no limit). The result always has one
// asset per page in order. A page that fails keeps its source asset and
// contributes a *PageError to the joined error; other pages are unaffected.
func BurnInPages(ctx context.Context, pages []imaging.Asset, anns []annotation.Annotation, limit int) ([]imaging.Asset, error) {
	out := make([]imaging.Asset, len(pages))
	errs := make([]error, len(pages))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, page := range pages {
		i, page := i, page
		g.Go(func() error {
			out[i] = page
			if err := ctx.Err(); err != nil {
				errs[i] = &PageError{Index: i, Err: err}
				return nil
			}
			res, err := BurnIn(page, annotation.ForPage(anns, i))
			if err != nil {
				errs[i] = &PageError{Index: i, Err: err}
				return nil
			}
			out[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return out, errors.Join(errs...)
}

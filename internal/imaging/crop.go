package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// CropQuality is the JPEG quality used for cropped pages.
const CropQuality = 0.92

// CropRangeError reports a crop rectangle that is empty or not fully
// contained in the source image.
//
// Out-of-range rectangles are rejected rather than clamped so that bugs in
// the coordinate mapping surface here instead of producing a silently
// shifted page. Callers clamp with geometry.ClampRect before cropping.
type CropRangeError struct {
	// Rect is the requested region, relative to the image origin.
	Rect image.Rectangle

	// Bounds is the source image extent, always anchored at (0,0).
	Bounds image.Rectangle
}

func (e *CropRangeError) Error() string {
	if e.Rect.Empty() {
		return fmt.Sprintf("invalid crop region %v: width and height must be positive", e.Rect)
	}
	return fmt.Sprintf("crop region %v outside image bounds %v", e.Rect, e.Bounds)
}

// Crop extracts rect from the asset and returns it as a new JPEG asset.
//
// rect is in source pixels relative to the top-left of the upright image.
// The output is exactly rect.Dx() x rect.Dy() pixels.
func Crop(asset Asset, rect image.Rectangle) (Asset, error) {
	img, err := Decode(asset.Data)
	if err != nil {
		return Asset{}, err
	}
	return CropImage(img, rect)
}

// CropImage is Crop for an already decoded image.
func CropImage(img image.Image, rect image.Rectangle) (Asset, error) {
	b := img.Bounds()
	bounds := image.Rect(0, 0, b.Dx(), b.Dy())

	if rect.Empty() || !rect.In(bounds) {
		return Asset{}, &CropRangeError{Rect: rect, Bounds: bounds}
	}

	// imaging.Crop works in the image's own coordinate space.
	cropped := imaging.Crop(img, rect.Add(b.Min))
	return EncodeAsset(cropped, CropQuality)
}

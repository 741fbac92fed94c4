package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"net/http"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

const (
	// MIMEJPEG is the MIME type of every encoded output.
	MIMEJPEG = "image/jpeg"

	// UploadMaxWidth is the default width pages are reduced to before grading.
	UploadMaxWidth = 1024

	// UploadQuality is the default JPEG quality used before grading.
	UploadQuality = 0.7
)

// Asset is an encoded raster payload plus its decoded pixel dimensions.
//
// Width and Height describe the upright image (after EXIF orientation), and
// are the source of truth for every percentage and pixel conversion.
type Asset struct {
	// Data holds the encoded bytes. Serialized as base64 in JSON.
	Data []byte `json:"data"`

	// MIMEType is the sniffed content type, e.g. "image/jpeg".
	MIMEType string `json:"mimeType"`

	// Width is the decoded image width in pixels.
	Width int `json:"width"`

	// Height is the decoded image height in pixels.
	Height int `json:"height"`
}

// DecodeError reports an image payload that could not be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode turns an encoded payload into pixels.
//
// JPEG payloads are auto-oriented using their EXIF tag. Any failure is
// returned as *DecodeError.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: errors.New("empty payload")}
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return img, nil
}

// NewAsset decodes data once to learn its dimensions and wraps it in an Asset.
//
// The bytes are kept as-is; nothing is re-encoded.
func NewAsset(data []byte) (Asset, error) {
	img, err := Decode(data)
	if err != nil {
		return Asset{}, err
	}
	b := img.Bounds()
	return Asset{
		Data:     data,
		MIMEType: http.DetectContentType(data),
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}

// ResizeToMaxWidth scales img down so that its width is at most maxWidth.
//
// Images that already fit are returned unchanged (the same value, not a
// copy). Larger images are scaled by maxWidth/width on both axes with a
// bilinear filter, so the aspect ratio is preserved to within one pixel of
// height. The function never upscales.
func ResizeToMaxWidth(img image.Image, maxWidth int) image.Image {
	if maxWidth <= 0 || img.Bounds().Dx() <= maxWidth {
		return img
	}
	// A zero height tells imaging to keep the aspect ratio.
	return imaging.Resize(img, maxWidth, 0, imaging.Linear)
}

// Encode writes img as JPEG. quality must be in (0,1]; higher means larger
// output and fewer artifacts.
func Encode(img image.Image, quality float64) ([]byte, error) {
	if math.IsNaN(quality) || quality <= 0 || quality > 1 {
		return nil, fmt.Errorf("invalid JPEG quality %v: must be in (0,1]", quality)
	}
	q := int(math.Round(quality * 100))
	if q < 1 {
		q = 1
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeAsset encodes img and returns it as a new Asset.
func EncodeAsset(img image.Image, quality float64) (Asset, error) {
	data, err := Encode(img, quality)
	if err != nil {
		return Asset{}, err
	}
	b := img.Bounds()
	return Asset{
		Data:     data,
		MIMEType: MIMEJPEG,
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}

// Compress prepares a page for upload: decode, shrink to maxWidth and
// re-encode at quality. The output is always a fresh JPEG, even when no
// resize was needed.
func Compress(asset Asset, maxWidth int, quality float64) (Asset, error) {
	img, err := Decode(asset.Data)
	if err != nil {
		return Asset{}, err
	}
	return EncodeAsset(ResizeToMaxWidth(img, maxWidth), quality)
}

package imaging

import (
	"errors"
	"image/color"
	"testing"
)

func TestNewAsset(t *testing.T) {
	data := encodePNG(t, createInMemoryImage(120, 80, color.RGBA{10, 20, 30, 255}))

	a, err := NewAsset(data)
	if err != nil {
		t.Fatalf("NewAsset failed: %v", err)
	}
	if a.Width != 120 || a.Height != 80 {
		t.Errorf("dimensions: got %dx%d, want 120x80", a.Width, a.Height)
	}
	if a.MIMEType != "image/png" {
		t.Errorf("MIMEType: got %s, want image/png", a.MIMEType)
	}
	if &a.Data[0] != &data[0] {
		t.Error("NewAsset should keep the original bytes")
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"text", []byte("not an image")},
		{"truncated png", encodePNG(t, createInMemoryImage(10, 10, color.White))[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %v", err)
			}
		})
	}
}

func TestResizeToMaxWidth_NeverUpscales(t *testing.T) {
	tests := []struct {
		w, h, maxWidth int
	}{
		{100, 100, 100},
		{100, 300, 1024},
		{1, 1, 2},
		{500, 20, 501},
	}

	for _, tt := range tests {
		img := createInMemoryImage(tt.w, tt.h, color.White)
		got := ResizeToMaxWidth(img, tt.maxWidth)
		if got != img {
			t.Errorf("%dx%d max %d: expected the input image back", tt.w, tt.h, tt.maxWidth)
		}
		if got.Bounds().Dx() != tt.w || got.Bounds().Dy() != tt.h {
			t.Errorf("%dx%d max %d: got %dx%d", tt.w, tt.h, tt.maxWidth,
				got.Bounds().Dx(), got.Bounds().Dy())
		}
	}
}

func TestResizeToMaxWidth_PreservesAspect(t *testing.T) {
	tests := []struct {
		w, h, maxWidth int
	}{
		{2000, 1000, 1024},
		{1000, 1414, 300},
		{3024, 4032, 1024},
		{777, 333, 100},
		{1025, 7, 1024},
	}

	for _, tt := range tests {
		img := createInMemoryImage(tt.w, tt.h, color.White)
		got := ResizeToMaxWidth(img, tt.maxWidth)
		gw, gh := got.Bounds().Dx(), got.Bounds().Dy()

		if gw != tt.maxWidth {
			t.Errorf("%dx%d: width got %d, want %d", tt.w, tt.h, gw, tt.maxWidth)
		}
		wantH := float64(tt.h) * float64(tt.maxWidth) / float64(tt.w)
		if diff := float64(gh) - wantH; diff > 1 || diff < -1 {
			t.Errorf("%dx%d: height got %d, want %.2f +/- 1", tt.w, tt.h, gh, wantH)
		}
	}
}

func TestEncode_Quality(t *testing.T) {
	img := createPatternImage(64, 64)

	for _, q := range []float64{0, -0.5, 1.01, 2} {
		if _, err := Encode(img, q); err == nil {
			t.Errorf("Encode should reject quality %v", q)
		}
	}

	low, err := Encode(img, 0.1)
	if err != nil {
		t.Fatalf("Encode(0.1) failed: %v", err)
	}
	high, err := Encode(img, 1)
	if err != nil {
		t.Fatalf("Encode(1) failed: %v", err)
	}
	if len(high) <= len(low) {
		t.Errorf("higher quality should be larger: q=1 %d bytes, q=0.1 %d bytes", len(high), len(low))
	}
}

func TestCompress(t *testing.T) {
	src, err := NewAsset(encodePNG(t, createPatternImage(2048, 1024)))
	if err != nil {
		t.Fatalf("NewAsset failed: %v", err)
	}

	out, err := Compress(src, UploadMaxWidth, UploadQuality)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if out.Width != 1024 || out.Height != 512 {
		t.Errorf("dimensions: got %dx%d, want 1024x512", out.Width, out.Height)
	}
	if out.MIMEType != MIMEJPEG {
		t.Errorf("MIMEType: got %s, want %s", out.MIMEType, MIMEJPEG)
	}

	// Source asset is untouched.
	if src.Width != 2048 || src.MIMEType != "image/png" {
		t.Error("Compress mutated its input")
	}
}

func TestCompress_SmallImageStillReencoded(t *testing.T) {
	src, err := NewAsset(encodePNG(t, createPatternImage(200, 100)))
	if err != nil {
		t.Fatalf("NewAsset failed: %v", err)
	}

	out, err := Compress(src, UploadMaxWidth, UploadQuality)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if out.Width != 200 || out.Height != 100 {
		t.Errorf("dimensions: got %dx%d, want 200x100", out.Width, out.Height)
	}
	if out.MIMEType != MIMEJPEG {
		t.Errorf("MIMEType: got %s, want %s", out.MIMEType, MIMEJPEG)
	}
}

func TestCompress_DecodeError(t *testing.T) {
	_, err := Compress(Asset{Data: []byte("junk")}, UploadMaxWidth, UploadQuality)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
}

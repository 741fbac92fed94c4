package history

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ironsheep/grade-overlay-mcp/internal/grading"
	"github.com/ironsheep/grade-overlay-mcp/internal/imaging"
)

func testAsset(t *testing.T, w, h int) imaging.Asset {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 120, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	a, err := imaging.NewAsset(buf.Bytes())
	require.NoError(t, err)
	return a
}

func testItem(t *testing.T, id, class string, ts time.Time) Item {
	t.Helper()
	return Item{
		ID:          id,
		Timestamp:   ts,
		Score:       8,
		MaxScore:    10,
		LetterGrade: "B",
		ClassName:   class,
		Pages:       []imaging.Asset{testAsset(t, 4, 3)},
		Result: grading.Result{
			Score:       8,
			MaxScore:    10,
			LetterGrade: "B",
			Summary:     "Good work",
			Details:     []grading.Detail{},
		},
	}
}

func TestDecodeItemV1(t *testing.T) {
	a := testAsset(t, 5, 7)
	raw, err := json.Marshal(map[string]any{
		"id":          "old",
		"timestamp":   int64(1700000000000),
		"score":       7,
		"letterGrade": "C",
		"className":   "7A",
		"image":       imaging.DataURL(a),
		"result":      map[string]any{"score": 7, "summary": "ok"},
	})
	require.NoError(t, err)

	it, err := DecodeItem(raw)
	require.NoError(t, err)
	require.Equal(t, "old", it.ID)
	require.Len(t, it.Pages, 1)
	require.Equal(t, a.Data, it.Pages[0].Data)
	require.Equal(t, 5, it.Pages[0].Width)
	require.Equal(t, 7, it.Pages[0].Height)
	require.Equal(t, float64(grading.DefaultMaxScore), it.MaxScore)
	require.Equal(t, time.UnixMilli(1700000000000).UTC(), it.Timestamp)
	require.NotNil(t, it.Result.Details)
}

func TestDecodeItemV2(t *testing.T) {
	a, b := testAsset(t, 2, 2), testAsset(t, 3, 3)
	raw, err := json.Marshal(map[string]any{
		"id":        "two",
		"timestamp": int64(1700000000000),
		"maxScore":  20,
		"images":    []string{imaging.DataURL(a), imaging.DataURL(b)},
		"result":    map[string]any{},
	})
	require.NoError(t, err)

	it, err := DecodeItem(raw)
	require.NoError(t, err)
	require.Len(t, it.Pages, 2)
	require.Equal(t, 3, it.Pages[1].Width)
	require.Equal(t, float64(20), it.MaxScore)
}

func TestDecodeItemBadDataURL(t *testing.T) {
	_, err := DecodeItem([]byte(`{"id":"x","image":"data:image/png;base64,!!!"}`))
	require.Error(t, err)

	_, err = DecodeItem([]byte(`{not json`))
	require.Error(t, err)
}

func TestEncodeItemWritesCurrentVersion(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	it := testItem(t, "a", "8B", ts)

	raw, err := EncodeItem(it)
	require.NoError(t, err)

	var r map[string]any
	require.NoError(t, json.Unmarshal(raw, &r))
	require.EqualValues(t, SchemaVersion, r["version"])
	require.EqualValues(t, ts.UnixMilli(), r["timestamp"])
	require.NotContains(t, r, "image")
	require.NotContains(t, r, "images")

	back, err := DecodeItem(raw)
	require.NoError(t, err)
	require.Equal(t, it, back)
}

func TestItemJSONUsesCodec(t *testing.T) {
	it := testItem(t, "a", "8B", time.UnixMilli(1710000000000).UTC())

	raw, err := json.Marshal([]Item{it})
	require.NoError(t, err)
	require.Contains(t, string(raw), `"version":3`)

	var back []Item
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, []Item{it}, back)
}

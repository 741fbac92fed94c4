package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/grade-overlay-mcp/internal/annotation"
	"github.com/ironsheep/grade-overlay-mcp/internal/geometry"
	"github.com/ironsheep/grade-overlay-mcp/internal/grading"
	"github.com/ironsheep/grade-overlay-mcp/internal/history"
	"github.com/ironsheep/grade-overlay-mcp/internal/imaging"
)

type fakeGrader struct {
	mu      sync.Mutex
	res     grading.Result
	err     error
	got     grading.Request
	calls   int
	started chan struct{}
	release chan struct{}
}

func (f *fakeGrader) Grade(ctx context.Context, req grading.Request) (grading.Result, error) {
	f.mu.Lock()
	f.got = req
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	return f.res, f.err
}

func solidAsset(t *testing.T, w, h int, c color.Color) imaging.Asset {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return encode(t, img)
}

func paperAsset(t *testing.T) imaging.Asset {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1000, 800))
	for y := 0; y < 800; y++ {
		for x := 0; x < 1000; x++ {
			c := color.RGBA{30, 30, 30, 255}
			if x >= 200 && x < 800 && y >= 150 && y < 650 {
				c = color.RGBA{230, 230, 230, 255}
			}
			img.Set(x, y, c)
		}
	}
	return encode(t, img)
}

func encode(t *testing.T, img image.Image) imaging.Asset {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	a, err := imaging.NewAsset(buf.Bytes())
	require.NoError(t, err)
	return a
}

func ptr[T any](v T) *T { return &v }

func gradedResult() grading.Result {
	return grading.Result{
		Score:       7,
		MaxScore:    10,
		LetterGrade: "C",
		Summary:     "Mostly right",
		ClassName:   "7A",
		Details: []grading.Detail{
			{Original: "2+2=5", Correction: "4", IsCorrect: false, X: ptr(50.0), Y: ptr(50.0), PageIndex: ptr(1)},
			{Original: "3+3=6", IsCorrect: true, X: ptr(20.0), Y: ptr(30.0)},
			{Original: "no position", IsCorrect: true},
		},
	}
}

func newSession() *Session {
	return New(zerolog.Nop(), Options{})
}

func TestPagesAddRemove(t *testing.T) {
	s := newSession()
	for i := 0; i < 3; i++ {
		idx, err := s.AddPage(solidAsset(t, 10+i, 10, color.White))
		require.NoError(t, err)
		require.Equal(t, i, idx)
	}

	store := s.Editor().Store()
	_, err := store.Place(0, 10, 10, annotation.Correct, "")
	require.NoError(t, err)
	_, err = store.Place(1, 20, 20, annotation.Incorrect, "")
	require.NoError(t, err)
	last, err := store.Place(2, 30, 30, annotation.Correct, "")
	require.NoError(t, err)

	require.NoError(t, s.RemovePage(1))
	pages := s.Pages()
	require.Len(t, pages, 2)
	require.Equal(t, 10, pages[0].Width)
	require.Equal(t, 12, pages[1].Width)

	anns := s.Annotations()
	require.Len(t, anns, 2)
	moved, ok := store.Get(last.ID)
	require.True(t, ok)
	require.Equal(t, 1, moved.PageIndex)

	require.ErrorIs(t, s.RemovePage(2), ErrPageIndex)
	require.ErrorIs(t, s.RemovePage(-1), ErrPageIndex)
	_, err = s.Page(5)
	require.ErrorIs(t, err, ErrPageIndex)
}

func TestReplacePageDropsItsAnnotations(t *testing.T) {
	s := newSession()
	_, err := s.AddPage(solidAsset(t, 10, 10, color.White))
	require.NoError(t, err)
	_, err = s.AddPage(solidAsset(t, 10, 10, color.White))
	require.NoError(t, err)

	store := s.Editor().Store()
	store.ReplaceAll([]annotation.Annotation{
		{ID: annotation.ScoreID, X: 5, Y: 2, Type: annotation.Text, Text: "1/2"},
		{ID: "a", X: 10, Y: 10, Type: annotation.Correct},
		{ID: "b", X: 10, Y: 10, Type: annotation.Correct, PageIndex: 1},
	})

	require.NoError(t, s.ReplacePage(0, solidAsset(t, 5, 5, color.Black)))
	ids := []string{}
	for _, a := range s.Annotations() {
		ids = append(ids, a.ID)
	}
	require.Equal(t, []string{annotation.ScoreID, "b"}, ids)
	require.Equal(t, 5, s.Pages()[0].Width)
}

func TestSubmit(t *testing.T) {
	s := newSession()
	_, err := s.AddPage(solidAsset(t, 2000, 1000, color.White))
	require.NoError(t, err)
	_, err = s.AddPage(solidAsset(t, 600, 800, color.White))
	require.NoError(t, err)

	g := &fakeGrader{res: gradedResult()}
	key := AnswerKey{Text: "2+2=4", File: &grading.File{Data: []byte("%PDF"), MIMEType: "application/pdf"}}
	res, err := s.Submit(context.Background(), g, key)
	require.NoError(t, err)
	require.Equal(t, float64(7), res.Score)

	require.Equal(t, 1, g.calls)
	require.Len(t, g.got.Pages, 2)
	require.Equal(t, 1024, g.got.Pages[0].Width)
	require.Equal(t, 512, g.got.Pages[0].Height)
	require.Equal(t, 600, g.got.Pages[1].Width)
	for _, p := range g.got.Pages {
		require.Equal(t, imaging.MIMEJPEG, p.MIMEType)
	}
	require.Equal(t, "2+2=4", g.got.AnswerKeyText)
	require.Equal(t, "application/pdf", g.got.AnswerKeyFile.MIMEType)

	// The stored pages are the originals, not the upload copies.
	require.Equal(t, 2000, s.Pages()[0].Width)

	stored, ok := s.Result()
	require.True(t, ok)
	require.Equal(t, "Mostly right", stored.Summary)

	anns := s.Annotations()
	require.Len(t, anns, 3)
	require.True(t, anns[0].IsScore())
	require.Equal(t, "7/10", anns[0].Text)
	require.Equal(t, annotation.Incorrect, anns[1].Type)
	require.Equal(t, 1, anns[1].PageIndex)
	require.Equal(t, annotation.Correct, anns[2].Type)
}

func TestSubmitFailureLeavesStateUnchanged(t *testing.T) {
	s := newSession()
	_, err := s.AddPage(solidAsset(t, 50, 50, color.White))
	require.NoError(t, err)
	placed, err := s.Editor().Store().Place(0, 40, 40, annotation.Correct, "")
	require.NoError(t, err)

	cause := errors.New("quota exceeded")
	_, err = s.Submit(context.Background(), &fakeGrader{err: cause}, AnswerKey{})

	var f *grading.Failure
	require.ErrorAs(t, err, &f)
	require.Equal(t, grading.DefaultFailureMessage, f.Message)
	require.ErrorIs(t, err, cause)

	_, ok := s.Result()
	require.False(t, ok)
	require.Equal(t, []annotation.Annotation{placed}, s.Annotations())

	// Failures from the grader pass through unchanged.
	custom := &grading.Failure{Message: "not configured"}
	_, err = s.Submit(context.Background(), &fakeGrader{err: custom}, AnswerKey{})
	require.Same(t, custom, err)
}

func TestSubmitNoPages(t *testing.T) {
	g := &fakeGrader{}
	_, err := newSession().Submit(context.Background(), g, AnswerKey{})
	require.ErrorIs(t, err, ErrNoPages)
	require.Zero(t, g.calls)
}

func TestSubmitBusy(t *testing.T) {
	s := newSession()
	_, err := s.AddPage(solidAsset(t, 20, 20, color.White))
	require.NoError(t, err)

	g := &fakeGrader{res: gradedResult(), started: make(chan struct{}), release: make(chan struct{})}
	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), g, AnswerKey{})
		done <- err
	}()
	<-g.started

	_, err = s.AddPage(solidAsset(t, 20, 20, color.White))
	require.ErrorIs(t, err, ErrPagesLocked)
	require.ErrorIs(t, s.RemovePage(0), ErrPagesLocked)
	require.ErrorIs(t, s.Reset(), ErrPagesLocked)
	_, err = s.Submit(context.Background(), g, AnswerKey{})
	require.ErrorIs(t, err, ErrPagesLocked)

	close(g.release)
	require.NoError(t, <-done)

	_, err = s.AddPage(solidAsset(t, 20, 20, color.White))
	require.NoError(t, err)
}

func TestDetectBounds(t *testing.T) {
	s := newSession()
	_, err := s.AddPage(paperAsset(t))
	require.NoError(t, err)

	d, err := s.DetectBounds(0, geometry.Size{Width: 500, Height: 400})
	require.NoError(t, err)
	require.True(t, d.Result.Detected)
	require.InDelta(t, 200, d.Crop.Min.X, 15)
	require.InDelta(t, 150, d.Crop.Min.Y, 15)
	require.InDelta(t, 800, d.Crop.Max.X, 15)
	require.InDelta(t, 650, d.Crop.Max.Y, 15)
	require.Greater(t, d.Viewport.Zoom, 1.0)

	_, err = s.AddPage(solidAsset(t, 100, 80, color.Gray{128}))
	require.NoError(t, err)
	d, err = s.DetectBounds(1, geometry.Size{Width: 500, Height: 400})
	require.NoError(t, err)
	require.False(t, d.Result.Detected)
	require.Equal(t, image.Rect(0, 0, 100, 80), d.Crop)
	require.Equal(t, geometry.Identity(), d.Viewport)
}

func TestCropPage(t *testing.T) {
	s := newSession()
	_, err := s.AddPage(paperAsset(t))
	require.NoError(t, err)

	out, err := s.CropPage(0, image.Rect(200, 150, 800, 650))
	require.NoError(t, err)
	require.Equal(t, 600, out.Width)
	require.Equal(t, 500, s.Pages()[0].Height)

	_, err = s.CropPage(0, image.Rect(0, 0, 601, 10))
	var rangeErr *imaging.CropRangeError
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, 600, s.Pages()[0].Width)
}

func TestCropPageToViewport(t *testing.T) {
	s := newSession()
	_, err := s.AddPage(paperAsset(t))
	require.NoError(t, err)

	container := geometry.Size{Width: 500, Height: 400}
	out, err := s.CropPageToViewport(0, geometry.Identity(), container)
	require.NoError(t, err)
	require.Equal(t, 1000, out.Width)
	require.Equal(t, 800, out.Height)

	out, err = s.CropPageToViewport(0, geometry.Viewport{Zoom: 2}, container)
	require.NoError(t, err)
	require.Equal(t, 500, out.Width)
	require.Equal(t, 400, out.Height)
}

func TestClickPlacesAndRemoves(t *testing.T) {
	s := newSession()
	_, err := s.AddPage(solidAsset(t, 400, 300, color.White))
	require.NoError(t, err)

	l := annotation.Layout{Container: geometry.Rect{Width: 400, Height: 300}, Viewport: geometry.Identity()}
	out, a, err := s.Click(0, geometry.Point{X: 200, Y: 150}, l)
	require.NoError(t, err)
	require.Equal(t, annotation.Placed, out)
	require.InDelta(t, 50, a.X, 1e-9)
	require.InDelta(t, 50, a.Y, 1e-9)

	out, _, err = s.Click(0, geometry.Point{X: 200, Y: 150}, l)
	require.NoError(t, err)
	require.Equal(t, annotation.Removed, out)
	require.Empty(t, s.Annotations())

	out, a, err = s.DoubleClick(0, geometry.Point{X: 100, Y: 100}, l)
	require.NoError(t, err)
	require.Equal(t, annotation.Placed, out)
	require.Equal(t, annotation.Incorrect, a.Type)

	_, _, err = s.Click(3, geometry.Point{}, l)
	require.ErrorIs(t, err, ErrPageIndex)
}

func TestSaveAndShare(t *testing.T) {
	ctx := context.Background()
	s := newSession()
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	repo, err := history.OpenFile(zerolog.Nop(), filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	_, err = s.Save(ctx, repo, "")
	require.ErrorIs(t, err, ErrNotGraded)

	_, err = s.AddPage(solidAsset(t, 300, 200, color.White))
	require.NoError(t, err)
	_, err = s.AddPage(solidAsset(t, 300, 200, color.White))
	require.NoError(t, err)
	_, err = s.Submit(ctx, &fakeGrader{res: gradedResult()}, AnswerKey{})
	require.NoError(t, err)

	it, err := s.Save(ctx, repo, "")
	require.NoError(t, err)
	require.Equal(t, "7A", it.ClassName)
	require.Equal(t, fixed, it.Timestamp)
	require.Len(t, it.Pages, 2)
	require.Equal(t, imaging.MIMEJPEG, it.Pages[0].MIMEType)

	items, err := repo.Items(ctx, "7A")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, it.ID, items[0].ID)

	it, err = s.Save(ctx, repo, " 8B ")
	require.NoError(t, err)
	require.Equal(t, "8B", it.ClassName)

	shared, err := s.Share(ctx)
	require.NoError(t, err)
	require.Len(t, shared, 2)
	require.Equal(t, "graded-1714979289000-page-1.jpg", shared[0].Name)
	require.True(t, strings.HasPrefix(shared[1].DataURL, "data:image/jpeg;base64,"))
}

func TestShareName(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	require.Equal(t, "graded-1700000000123.jpg", ShareName(ts, 0, 1))
	require.Equal(t, "graded-1700000000123-page-3.jpg", ShareName(ts, 2, 4))
}

func TestReset(t *testing.T) {
	s := newSession()
	_, err := s.AddPage(solidAsset(t, 20, 20, color.White))
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), &fakeGrader{res: gradedResult()}, AnswerKey{})
	require.NoError(t, err)

	require.NoError(t, s.Reset())
	require.Empty(t, s.Pages())
	require.Empty(t, s.Annotations())
	_, ok := s.Result()
	require.False(t, ok)

	_, err = s.Render(context.Background())
	require.ErrorIs(t, err, ErrNoPages)
}

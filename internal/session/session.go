package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/grade-overlay-mcp/internal/annotation"
	"github.com/ironsheep/grade-overlay-mcp/internal/compositor"
	"github.com/ironsheep/grade-overlay-mcp/internal/detection"
	"github.com/ironsheep/grade-overlay-mcp/internal/geometry"
	"github.com/ironsheep/grade-overlay-mcp/internal/grading"
	"github.com/ironsheep/grade-overlay-mcp/internal/history"
	"github.com/ironsheep/grade-overlay-mcp/internal/imaging"
)

var (
	ErrNoPages     = errors.New("no pages in submission")
	ErrNotGraded   = errors.New("submission has not been graded")
	ErrPagesLocked = errors.New("grading in progress")
	ErrPageIndex   = errors.New("page index out of range")
)

// Options tune the submission flow. Zero values use the defaults.
type Options struct {
	UploadWidth   int
	UploadQuality float64
	Concurrency   int
}

func (o Options) withDefaults() Options {
	if o.UploadWidth <= 0 {
		o.UploadWidth = imaging.UploadMaxWidth
	}
	if !(o.UploadQuality > 0 && o.UploadQuality <= 1) {
		o.UploadQuality = imaging.UploadQuality
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	return o
}

// AnswerKey is the reference the grader compares against. Either field
// may be empty.
type AnswerKey struct {
	Text string
	File *grading.File
}

// Detection is the starting point offered when a page enters the cropper.
type Detection struct {
	Result   detection.Result  `json:"result"`
	Crop     image.Rectangle   `json:"crop"`
	Viewport geometry.Viewport `json:"viewport"`
}

// SharedPage is one flattened page ready to hand to a share target.
type SharedPage struct {
	Name    string `json:"name"`
	DataURL string `json:"dataUrl"`
}

// Session is a submission in progress.
type Session struct {
	log  zerolog.Logger
	opts Options

	mu      sync.Mutex
	pages   []imaging.Asset
	result  *grading.Result
	grading bool
	editor  *annotation.Editor

	now func() time.Time
}

// New returns an empty session.
func New(log zerolog.Logger, opts Options) *Session {
	return &Session{
		log:    log.With().Str("component", "session").Logger(),
		opts:   opts.withDefaults(),
		editor: annotation.NewEditor(annotation.NewStore()),
		now:    time.Now,
	}
}

// Editor returns the annotation editor for this submission.
func (s *Session) Editor() *annotation.Editor { return s.editor }

// AddPage appends a page and returns its index.
func (s *Session) AddPage(a imaging.Asset) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grading {
		return 0, ErrPagesLocked
	}
	s.pages = append(s.pages, a)
	s.log.Debug().Int("page", len(s.pages)-1).Int("width", a.Width).Int("height", a.Height).Msg("page added")
	return len(s.pages) - 1, nil
}

// RemovePage deletes page i. Annotations on it are dropped and those on
// later pages move down one index.
func (s *Session) RemovePage(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grading {
		return ErrPagesLocked
	}
	if err := s.checkPage(i); err != nil {
		return err
	}

	s.pages = append(s.pages[:i:i], s.pages[i+1:]...)
	s.editor.Cancel()
	dropped := s.editor.Store().RemovePage(i)
	s.log.Debug().Int("page", i).Int("droppedAnnotations", dropped).Msg("page removed")
	return nil
}

// ReplacePage swaps the content of page i. Annotations on that page are
// dropped since their positions no longer refer to the same content.
func (s *Session) ReplacePage(i int, a imaging.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grading {
		return ErrPagesLocked
	}
	return s.replaceLocked(i, a)
}

func (s *Session) replaceLocked(i int, a imaging.Asset) error {
	if err := s.checkPage(i); err != nil {
		return err
	}
	s.pages[i] = a

	all := s.editor.Store().All()
	kept := all[:0]
	for _, ann := range all {
		if ann.PageIndex != i || ann.IsScore() {
			kept = append(kept, ann)
		}
	}
	if len(kept) != len(all) {
		s.editor.Cancel()
		s.editor.Store().ReplaceAll(kept)
	}
	return nil
}

// Pages returns a copy of the page list.
func (s *Session) Pages() []imaging.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]imaging.Asset, len(s.pages))
	copy(out, s.pages)
	return out
}

// Page returns page i.
func (s *Session) Page(i int) (imaging.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPage(i); err != nil {
		return imaging.Asset{}, err
	}
	return s.pages[i], nil
}

// DetectBounds runs the paper detector on page i and returns the suggested
// crop together with a viewport that frames it in container.
func (s *Session) DetectBounds(i int, container geometry.Size) (Detection, error) {
	page, err := s.Page(i)
	if err != nil {
		return Detection{}, err
	}
	img, err := imaging.Decode(page.Data)
	if err != nil {
		return Detection{}, err
	}

	res, crop := detection.SuggestCrop(img)
	size := geometry.SizeOf(img.Bounds())
	vp := geometry.Identity()
	if res.Detected {
		vp = geometry.CenterOn(geometry.RectFrom(crop), size, container)
	}
	s.log.Debug().Int("page", i).Bool("detected", res.Detected).Str("crop", crop.String()).Msg("paper bounds")
	return Detection{Result: res, Crop: crop, Viewport: vp}, nil
}

// CropPage crops page i to rect (source pixels) and replaces it.
func (s *Session) CropPage(i int, rect image.Rectangle) (imaging.Asset, error) {
	page, err := s.Page(i)
	if err != nil {
		return imaging.Asset{}, err
	}
	cropped, err := imaging.Crop(page, rect)
	if err != nil {
		return imaging.Asset{}, err
	}
	if err := s.ReplacePage(i, cropped); err != nil {
		return imaging.Asset{}, err
	}
	return cropped, nil
}

// CropPageToViewport crops page i to the part visible through container at
// vp.
func (s *Session) CropPageToViewport(i int, vp geometry.Viewport, container geometry.Size) (imaging.Asset, error) {
	page, err := s.Page(i)
	if err != nil {
		return imaging.Asset{}, err
	}
	size := geometry.Size{Width: float64(page.Width), Height: float64(page.Height)}
	visible := geometry.VisibleSourceRect(vp, size, container)
	return s.CropPage(i, geometry.ClampRect(visible, size))
}

// Submit compresses every page and sends them to g in one call. On failure
// the session is left as it was and a *grading.Failure is returned. On
// success the result is kept and the annotations are replaced by the ones
// derived from it.
func (s *Session) Submit(ctx context.Context, g grading.Grader, key AnswerKey) (grading.Result, error) {
	s.mu.Lock()
	if s.grading {
		s.mu.Unlock()
		return grading.Result{}, ErrPagesLocked
	}
	if len(s.pages) == 0 {
		s.mu.Unlock()
		return grading.Result{}, ErrNoPages
	}
	pages := make([]imaging.Asset, len(s.pages))
	copy(pages, s.pages)
	s.grading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.grading = false
		s.mu.Unlock()
	}()

	start := s.now()
	upload, err := s.compress(ctx, pages)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to prepare pages for grading")
		return grading.Result{}, asFailure(err)
	}

	res, err := g.Grade(ctx, grading.Request{
		Pages:         upload,
		AnswerKeyText: key.Text,
		AnswerKeyFile: key.File,
	})
	if err != nil {
		s.log.Error().Err(err).Int("pages", len(upload)).Msg("grading failed")
		return grading.Result{}, asFailure(err)
	}
	res = res.Normalize()

	s.mu.Lock()
	s.result = &res
	s.editor.Cancel()
	s.editor.Store().ReplaceAll(annotation.FromResult(res))
	s.mu.Unlock()

	s.log.Info().
		Int("pages", len(upload)).
		Float64("score", res.Score).
		Float64("maxScore", res.MaxScore).
		Int("details", len(res.Details)).
		Dur("elapsed", s.now().Sub(start)).
		Msg("submission graded")
	return res, nil
}

func (s *Session) compress(ctx context.Context, pages []imaging.Asset) ([]imaging.Asset, error) {
	out := make([]imaging.Asset, len(pages))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, p := range pages {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a, err := imaging.Compress(p, s.opts.UploadWidth, s.opts.UploadQuality)
			if err != nil {
				return fmt.Errorf("page %d: %w", i, err)
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func asFailure(err error) error {
	var f *grading.Failure
	if errors.As(err, &f) {
		return f
	}
	return &grading.Failure{Message: grading.DefaultFailureMessage, Err: err}
}

// Result returns the grading result, if any.
func (s *Session) Result() (grading.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return grading.Result{}, false
	}
	return *s.result, true
}

// Annotations returns the current annotations.
func (s *Session) Annotations() []annotation.Annotation {
	return s.editor.Store().All()
}

// Render flattens the annotations into every page. Pending text entries
// are committed first. A page that fails to render keeps its source image
// and its error is included in the returned error.
func (s *Session) Render(ctx context.Context) ([]imaging.Asset, error) {
	s.editor.Commit()
	pages := s.Pages()
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	return compositor.BurnInPages(ctx, pages, s.Annotations(), s.opts.Concurrency)
}

// Save renders the pages and stores them with the result under className.
// An empty className falls back to the class the grader detected.
func (s *Session) Save(ctx context.Context, repo history.Repository, className string) (history.Item, error) {
	res, ok := s.Result()
	if !ok {
		return history.Item{}, ErrNotGraded
	}

	pages, err := s.Render(ctx)
	if errors.Is(err, ErrNoPages) || ctx.Err() != nil {
		return history.Item{}, errors.Join(err, ctx.Err())
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("some pages saved without annotations")
	}

	className = history.NormalizeClass(className)
	if className == "" {
		className = history.NormalizeClass(res.ClassName)
	}
	it := history.Item{
		ID:          uuid.NewString(),
		Timestamp:   s.now().UTC(),
		Score:       res.Score,
		MaxScore:    res.MaxScore,
		LetterGrade: res.LetterGrade,
		ClassName:   className,
		Pages:       pages,
		Result:      res,
	}
	if err := repo.SaveItem(ctx, it); err != nil {
		return history.Item{}, fmt.Errorf("failed to save submission: %w", err)
	}
	s.log.Info().Str("id", it.ID).Str("class", className).Int("pages", len(pages)).Msg("submission saved")
	return it, nil
}

// Share renders the pages and returns them as named data URLs.
func (s *Session) Share(ctx context.Context) ([]SharedPage, error) {
	pages, err := s.Render(ctx)
	if errors.Is(err, ErrNoPages) || ctx.Err() != nil {
		return nil, errors.Join(err, ctx.Err())
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("some pages shared without annotations")
	}

	ts := s.now()
	out := make([]SharedPage, len(pages))
	for i, p := range pages {
		out[i] = SharedPage{Name: ShareName(ts, i, len(pages)), DataURL: imaging.DataURL(p)}
	}
	return out, nil
}

// ShareName is the file name of page i of n shared at ts.
func ShareName(ts time.Time, i, n int) string {
	if n <= 1 {
		return fmt.Sprintf("graded-%d.jpg", ts.UnixMilli())
	}
	return fmt.Sprintf("graded-%d-page-%d.jpg", ts.UnixMilli(), i+1)
}

// Reset clears pages, result and annotations.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grading {
		return ErrPagesLocked
	}
	s.pages = nil
	s.result = nil
	s.editor.Cancel()
	s.editor.Store().Clear()
	s.log.Debug().Msg("session reset")
	return nil
}

func (s *Session) checkPage(i int) error {
	if i < 0 || i >= len(s.pages) {
		return fmt.Errorf("%w: %d (have %d)", ErrPageIndex, i, len(s.pages))
	}
	return nil
}

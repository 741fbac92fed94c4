package annotation

import (
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ironsheep/grade-overlay-mcp/internal/geometry"
)

const (
	// MinGlyphSize is the smallest marker size in source pixels.
	MinGlyphSize = 20

	// GlyphScale sizes markers relative to the page width.
	GlyphScale = 0.05

	// charWidth approximates the advance of one character as a fraction of
	// the glyph size.
	charWidth = 0.6
)

// GlyphSize returns the marker size, in source pixels, for a page of the
// given width.
func GlyphSize(pageWidth float64) float64 {
	return math.Max(MinGlyphSize, pageWidth*GlyphScale)
}

// Footprint returns the area a renders over when anchored at p with the
// given glyph size. The score label extends right and down from p; every
// other annotation is centred on p.
func Footprint(a Annotation, p geometry.Point, size float64) geometry.Rect {
	w, h := size, size
	if a.Type == Text {
		n := utf8.RuneCountInString(a.Text)
		if n == 0 {
			n = 1
		}
		w = float64(n) * size * charWidth
	}
	if a.IsScore() {
		return geometry.Rect{X: p.X, Y: p.Y, Width: w, Height: h}
	}
	return geometry.Rect{X: p.X - w/2, Y: p.Y - h/2, Width: w, Height: h}
}

// Layout describes how a page is currently shown.
type Layout struct {
	// Container is the on-screen rectangle of the page view.
	Container geometry.Rect `json:"container"`

	// Image is the page's pixel size.
	Image geometry.Size `json:"image"`

	// Viewport is the current zoom and pan.
	Viewport geometry.Viewport `json:"viewport"`

	// GlyphSize overrides the on-screen marker size used for hit testing.
	// Zero derives it from the page width and the display scale.
	GlyphSize float64 `json:"glyphSize,omitempty"`
}

func (l Layout) glyphSize() float64 {
	if l.GlyphSize > 0 {
		return l.GlyphSize
	}
	return GlyphSize(l.Image.Width) * geometry.DisplayScale(l.Image, l.Container.Size(), l.Viewport)
}

// HitTest returns the top-most annotation of page whose rendered footprint
// contains click (screen coordinates).
func HitTest(list []Annotation, page int, click geometry.Point, l Layout) (Annotation, bool) {
	size := l.glyphSize()
	for i := len(list) - 1; i >= 0; i-- {
		a := list[i]
		if a.PageIndex != page {
			continue
		}
		anchor := geometry.PercentToDisplay(a.Position(), l.Container, l.Image, l.Viewport)
		if Footprint(a, anchor, size).Contains(click) {
			return a, true
		}
	}
	return Annotation{}, false
}

// Outcome is the effect of a gesture.
type Outcome int

const (
	// Ignored means nothing changed: zoom mode, or a click outside the view.
	Ignored Outcome = iota

	// Placed means a new annotation was appended.
	Placed

	// Removed means an existing annotation was hit and deleted.
	Removed

	// TextEntryOpened means a pending text entry now waits for Commit.
	TextEntryOpened
)

func (o Outcome) String() string {
	switch o {
	case Placed:
		return "placed"
	case Removed:
		return "removed"
	case TextEntryOpened:
		return "text_entry_opened"
	default:
		return "ignored"
	}
}

// MarshalText encodes the outcome as its name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// PendingText is an open text entry.
type PendingText struct {
	PageIndex int     `json:"pageIndex"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Draft     string  `json:"draft"`
}

// Editor applies click gestures to a Store using the active tool.
//
// While the viewport is zoomed every gesture is ignored: zoom mode is for
// panning only. A gesture arriving while a text entry is open first commits
// that entry, the way a text field commits on blur.
type Editor struct {
	store *Store

	mu      sync.Mutex
	tool    Kind
	pending *PendingText
}

// NewEditor returns an editor over store with the Correct tool active.
func NewEditor(store *Store) *Editor {
	return &Editor{store: store, tool: Correct}
}

// Store returns the underlying store.
func (e *Editor) Store() *Store { return e.store }

// SetTool selects the tool used by single clicks.
func (e *Editor) SetTool(k Kind) error {
	if !k.Valid() {
		return ErrInvalidKind
	}
	e.mu.Lock()
	e.tool = k
	e.mu.Unlock()
	return nil
}

// Tool returns the active tool.
func (e *Editor) Tool() Kind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tool
}

// Click handles a single click at screen position p on page.
//
// A hit on an existing marker removes it and nothing is placed. Otherwise
// the Correct and Incorrect tools place immediately and the Text tool opens
// a pending entry at the mapped position.
func (e *Editor) Click(page int, p geometry.Point, l Layout) (Outcome, Annotation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commitLocked()

	if l.Viewport.Zoomed() {
		return Ignored, Annotation{}
	}
	pct, ok := geometry.ClickToPercent(p, l.Container, l.Image, l.Viewport)
	if !ok {
		return Ignored, Annotation{}
	}

	if hit, ok := HitTest(e.store.All(), page, p, l); ok {
		e.store.Remove(hit.ID)
		return Removed, hit
	}

	if e.tool == Text {
		e.pending = &PendingText{PageIndex: page, X: pct.X, Y: pct.Y}
		return TextEntryOpened, Annotation{}
	}

	a, err := e.store.Place(page, pct.X, pct.Y, e.tool, "")
	if err != nil {
		return Ignored, Annotation{}
	}
	return Placed, a
}

// DoubleClick places an Incorrect marker at p whatever the active tool.
func (e *Editor) DoubleClick(page int, p geometry.Point, l Layout) (Outcome, Annotation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commitLocked()

	if l.Viewport.Zoomed() {
		return Ignored, Annotation{}
	}
	pct, ok := geometry.ClickToPercent(p, l.Container, l.Image, l.Viewport)
	if !ok {
		return Ignored, Annotation{}
	}

	a, err := e.store.Place(page, pct.X, pct.Y, Incorrect, "")
	if err != nil {
		return Ignored, Annotation{}
	}
	return Placed, a
}

// Pending returns the open text entry, if any.
func (e *Editor) Pending() (PendingText, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return PendingText{}, false
	}
	return *e.pending, true
}

// SetDraft replaces the text of the open entry. It reports false when no
// entry is open.
func (e *Editor) SetDraft(s string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return false
	}
	e.pending.Draft = s
	return true
}

// Commit closes the open entry. A draft that is empty after trimming is
// discarded silently and reported as false.
func (e *Editor) Commit() (Annotation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commitLocked()
}

func (e *Editor) commitLocked() (Annotation, bool) {
	p := e.pending
	e.pending = nil
	if p == nil || strings.TrimSpace(p.Draft) == "" {
		return Annotation{}, false
	}
	a, err := e.store.Place(p.PageIndex, p.X, p.Y, Text, p.Draft)
	if err != nil {
		return Annotation{}, false
	}
	return a, true
}

// Cancel closes the open entry without adding anything.
func (e *Editor) Cancel() {
	e.mu.Lock()
	e.pending = nil
	e.mu.Unlock()
}

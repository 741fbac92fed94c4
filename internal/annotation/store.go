package annotation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ironsheep/grade-overlay-mcp/internal/geometry"
)

// Store is the ordered annotation list of one submission. It is safe for
// concurrent use.
type Store struct {
	mu    sync.RWMutex
	items []Annotation
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Place appends a new annotation with a fresh id. x and y are clamped into
// [0,100]. Text is trimmed and required for Text annotations; other kinds
// drop it.
func (s *Store) Place(page int, x, y float64, kind Kind, text string) (Annotation, error) {
	a, err := newAnnotation(page, x, y, kind, text)
	if err != nil {
		return Annotation{}, err
	}

	s.mu.Lock()
	s.items = append(s.items, a)
	s.mu.Unlock()
	return a, nil
}

func newAnnotation(page int, x, y float64, kind Kind, text string) (Annotation, error) {
	if !kind.Valid() {
		return Annotation{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if page < 0 {
		return Annotation{}, fmt.Errorf("invalid page index %d", page)
	}

	text = strings.TrimSpace(text)
	if kind == Text && text == "" {
		return Annotation{}, ErrEmptyText
	}
	if kind != Text {
		text = ""
	}

	return Annotation{
		ID:        uuid.NewString(),
		X:         geometry.ClampPercent(x),
		Y:         geometry.ClampPercent(y),
		Type:      kind,
		Text:      text,
		PageIndex: page,
	}, nil
}

// Remove deletes the annotation with the given id. Unknown ids are a no-op;
// the result reports whether anything was removed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.items {
		if a.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// ReplaceAll swaps the whole list. Entries are copied and clamped; missing
// ids are generated and negative page indexes become 0.
func (s *Store) ReplaceAll(list []Annotation) {
	items := make([]Annotation, 0, len(list))
	for _, a := range list {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.X = geometry.ClampPercent(a.X)
		a.Y = geometry.ClampPercent(a.Y)
		if a.PageIndex < 0 {
			a.PageIndex = 0
		}
		items = append(items, a)
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

// Clear removes every annotation.
func (s *Store) Clear() {
	s.ReplaceAll(nil)
}

// All returns a copy of the list in insertion order.
func (s *Store) All() []Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Annotation, len(s.items))
	copy(out, s.items)
	return out
}

// ForPage returns a copy of one page's annotations.
func (s *Store) ForPage(page int) []Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ForPage(s.items, page)
}

// Get looks up an annotation by id.
func (s *Store) Get(id string) (Annotation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.items {
		if a.ID == id {
			return a, true
		}
	}
	return Annotation{}, false
}

// Len returns the number of annotations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// RemovePage drops the annotations of a removed page and shifts the
// annotations of later pages down by one, keeping them attached to the
// same image. The score label always stays on the first page. It returns
// how many annotations were dropped.
func (s *Store) RemovePage(page int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	dropped := 0
	for _, a := range s.items {
		switch {
		case a.IsScore():
		case a.PageIndex == page:
			dropped++
			continue
		case a.PageIndex > page:
			a.PageIndex--
		}
		kept = append(kept, a)
	}
	s.items = kept
	return dropped
}

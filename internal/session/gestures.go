package session

import (
	"github.com/ironsheep/grade-overlay-mcp/internal/annotation"
	"github.com/ironsheep/grade-overlay-mcp/internal/geometry"
)

// Click forwards a single click on page to the editor. A Layout without an
// image size takes it from the page.
func (s *Session) Click(page int, p geometry.Point, l annotation.Layout) (annotation.Outcome, annotation.Annotation, error) {
	l, err := s.layoutFor(page, l)
	if err != nil {
		return annotation.Ignored, annotation.Annotation{}, err
	}
	out, a := s.editor.Click(page, p, l)
	s.log.Debug().Int("page", page).Stringer("outcome", out).Str("id", a.ID).Msg("click")
	return out, a, nil
}

// DoubleClick forwards a double click on page to the editor.
func (s *Session) DoubleClick(page int, p geometry.Point, l annotation.Layout) (annotation.Outcome, annotation.Annotation, error) {
	l, err := s.layoutFor(page, l)
	if err != nil {
		return annotation.Ignored, annotation.Annotation{}, err
	}
	out, a := s.editor.DoubleClick(page, p, l)
	s.log.Debug().Int("page", page).Stringer("outcome", out).Str("id", a.ID).Msg("double click")
	return out, a, nil
}

func (s *Session) layoutFor(page int, l annotation.Layout) (annotation.Layout, error) {
	p, err := s.Page(page)
	if err != nil {
		return l, err
	}
	if l.Image.Empty() {
		l.Image = geometry.Size{Width: float64(p.Width), Height: float64(p.Height)}
	}
	return l, nil
}

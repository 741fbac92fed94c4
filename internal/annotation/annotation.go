package annotation

import (
	"errors"
	"fmt"

	"github.com/ironsheep/grade-overlay-mcp/internal/geometry"
)

// Kind is the marker type.
type Kind string

const (
	Correct   Kind = "correct"
	Incorrect Kind = "incorrect"
	Text      Kind = "text"
)

// ScoreID is the reserved id of the auto-placed score label. It is the only
// annotation anchored top-left instead of centred.
const ScoreID = "auto-score"

var (
	// ErrEmptyText is returned when a text annotation has no text after
	// trimming.
	ErrEmptyText = errors.New("text annotation requires non-empty text")

	// ErrInvalidKind is returned for an unknown annotation type.
	ErrInvalidKind = errors.New("invalid annotation type")
)

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case Correct, Incorrect, Text:
		return true
	}
	return false
}

// Annotation is a marker on one page.
type Annotation struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Type      Kind    `json:"type"`
	Text      string  `json:"text,omitempty"`
	PageIndex int     `json:"pageIndex"`
}

// IsScore reports whether a is the auto-placed score label.
func (a Annotation) IsScore() bool { return a.ID == ScoreID }

// Position returns the percentage position.
func (a Annotation) Position() geometry.Point { return geometry.Point{X: a.X, Y: a.Y} }

// ForPage filters list down to the annotations of one page, keeping order.
func ForPage(list []Annotation, page int) []Annotation {
	out := make([]Annotation, 0, len(list))
	for _, a := range list {
		if a.PageIndex == page {
			out = append(out, a)
		}
	}
	return out
}

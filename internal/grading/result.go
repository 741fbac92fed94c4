package grading

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DefaultMaxScore is assumed when the model omits the maximum score.
const DefaultMaxScore = 100

// Detail is one correctness finding. X and Y are percentages of the page
// the finding is on; they and PageIndex are optional.
type Detail struct {
	Original    string   `json:"original"`
	Correction  string   `json:"correction"`
	Explanation string   `json:"explanation"`
	IsCorrect   bool     `json:"isCorrect"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	PageIndex   *int     `json:"pageIndex,omitempty"`
}

// HasPosition reports whether the detail carries both coordinates.
func (d Detail) HasPosition() bool {
	return d.X != nil && d.Y != nil
}

// UnmarshalJSON accepts pageIndex as any JSON number. Models sometimes
// send 1.0 for 1; fractions are truncated and values that cannot be a page
// index are dropped.
func (d *Detail) UnmarshalJSON(b []byte) error {
	type plain Detail
	var aux struct {
		plain
		PageIndex *float64 `json:"pageIndex"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*d = Detail(aux.plain)
	d.PageIndex = nil
	if p := aux.PageIndex; p != nil && *p >= 0 && *p <= math.MaxInt32 {
		i := int(math.Trunc(*p))
		d.PageIndex = &i
	}
	return nil
}

// Page returns the page the detail belongs to, 0 when unspecified.
func (d Detail) Page() int {
	if d.PageIndex == nil {
		return 0
	}
	return *d.PageIndex
}

// Result is the structured grading outcome.
type Result struct {
	Score              float64  `json:"score"`
	MaxScore           float64  `json:"maxScore"`
	LetterGrade        string   `json:"letterGrade"`
	Summary            string   `json:"summary"`
	ClassName          string   `json:"className,omitempty"`
	DetectedGradeLevel string   `json:"detectedGradeLevel,omitempty"`
	DetectedSubject    string   `json:"detectedSubject,omitempty"`
	Details            []Detail `json:"details"`
}

// Normalize fills defaults and drops values that cannot be used:
// a missing or non-positive MaxScore becomes DefaultMaxScore, nil Details
// becomes empty, and non-finite coordinates or negative page indexes are
// removed from their detail.
func (r Result) Normalize() Result {
	if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
		r.Score = 0
	}
	if !(r.MaxScore > 0) || math.IsInf(r.MaxScore, 0) {
		r.MaxScore = DefaultMaxScore
	}

	details := make([]Detail, 0, len(r.Details))
	for _, d := range r.Details {
		if d.X != nil && !finite(*d.X) {
			d.X = nil
		}
		if d.Y != nil && !finite(*d.Y) {
			d.Y = nil
		}
		if d.PageIndex != nil && *d.PageIndex < 0 {
			d.PageIndex = nil
		}
		details = append(details, d)
	}
	r.Details = details
	return r
}

// ParseResult decodes a model response into a normalized Result. Markdown
// code fences around the JSON are tolerated.
func ParseResult(text string) (Result, error) {
	text = stripCodeFences(text)
	if text == "" {
		return Result{}, fmt.Errorf("empty response")
	}

	var r Result
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return Result{}, fmt.Errorf("bad JSON: %w", err)
	}
	return r.Normalize(), nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

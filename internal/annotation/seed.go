package annotation

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/ironsheep/grade-overlay-mcp/internal/geometry"
	"github.com/ironsheep/grade-overlay-mcp/internal/grading"
)

// Position of the score label, in percent of page 0.
const (
	ScoreX = 5
	ScoreY = 2
)

// FromResult builds the initial annotation layer for a grading result: the
// score label first, then one marker per detail that has coordinates.
// Details without coordinates are left out.
func FromResult(res grading.Result) []Annotation {
	out := make([]Annotation, 0, len(res.Details)+1)
	out = append(out, Annotation{
		ID:   ScoreID,
		X:    ScoreX,
		Y:    ScoreY,
		Type: Text,
		Text: ScoreText(res),
	})

	for _, d := range res.Details {
		if !d.HasPosition() {
			continue
		}
		kind := Incorrect
		if d.IsCorrect {
			kind = Correct
		}
		page := d.Page()
		if page < 0 {
			page = 0
		}
		out = append(out, Annotation{
			ID:        uuid.NewString(),
			X:         geometry.ClampPercent(*d.X),
			Y:         geometry.ClampPercent(*d.Y),
			Type:      kind,
			PageIndex: page,
		})
	}
	return out
}

// ScoreText renders a score as "score/maxScore".
func ScoreText(res grading.Result) string {
	return formatNumber(res.Score) + "/" + formatNumber(res.MaxScore)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

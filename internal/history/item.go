package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ironsheep/grade-overlay-mcp/internal/grading"
	"github.com/ironsheep/grade-overlay-mcp/internal/imaging"
)

// SchemaVersion is the version written by EncodeItem.
const SchemaVersion = 3

// Item is one saved, graded submission. Pages hold the flattened images
// with annotations burned in.
type Item struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Score       float64         `json:"score"`
	MaxScore    float64         `json:"maxScore"`
	LetterGrade string          `json:"letterGrade"`
	ClassName   string          `json:"className"`
	Pages       []imaging.Asset `json:"pages"`
	Result      grading.Result  `json:"result"`
}

// Rubric is a saved answer key.
type Rubric struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	AnswerKeyText string    `json:"answerKeyText"`
	CreatedAt     time.Time `json:"createdAt"`
}

// record is the on-disk shape of every item version. Timestamp is Unix
// milliseconds.
type record struct {
	Version     int             `json:"version,omitempty"`
	ID          string          `json:"id"`
	Timestamp   int64           `json:"timestamp"`
	Score       float64         `json:"score"`
	MaxScore    float64         `json:"maxScore,omitempty"`
	LetterGrade string          `json:"letterGrade"`
	ClassName   string          `json:"className"`
	Pages       []imaging.Asset `json:"pages,omitempty"`
	Images      []string        `json:"images,omitempty"`
	Image       string          `json:"image,omitempty"`
	Result      grading.Result  `json:"result"`
}

// version works out which shape r was written in.
func (r record) version() int {
	switch {
	case r.Version >= SchemaVersion || len(r.Pages) > 0:
		return 3
	case len(r.Images) > 0:
		return 2
	case r.Image != "":
		return 1
	}
	return 3
}

// DecodeItem reads any supported item version.
func DecodeItem(raw []byte) (Item, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Item{}, fmt.Errorf("failed to decode history item: %w", err)
	}

	var pages []imaging.Asset
	switch r.version() {
	case 1:
		a, err := imaging.AssetFromDataURL(r.Image)
		if err != nil {
			return Item{}, fmt.Errorf("history item %s: image: %w", r.ID, err)
		}
		pages = []imaging.Asset{a}
	case 2:
		pages = make([]imaging.Asset, 0, len(r.Images))
		for i, s := range r.Images {
			a, err := imaging.AssetFromDataURL(s)
			if err != nil {
				return Item{}, fmt.Errorf("history item %s: images[%d]: %w", r.ID, i, err)
			}
			pages = append(pages, a)
		}
	default:
		pages = r.Pages
	}
	if pages == nil {
		pages = []imaging.Asset{}
	}

	res := r.Result.Normalize()
	maxScore := r.MaxScore
	if !(maxScore > 0) {
		maxScore = res.MaxScore
	}

	return Item{
		ID:          r.ID,
		Timestamp:   time.UnixMilli(r.Timestamp).UTC(),
		Score:       r.Score,
		MaxScore:    maxScore,
		LetterGrade: r.LetterGrade,
		ClassName:   r.ClassName,
		Pages:       pages,
		Result:      res,
	}, nil
}

// recordID returns the id of a raw record, or "" when even that cannot be
// read.
func recordID(raw []byte) string {
	var r struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(raw, &r) != nil {
		return ""
	}
	return r.ID
}

// EncodeItem writes it in the current schema version.
func EncodeItem(it Item) ([]byte, error) {
	pages := it.Pages
	if pages == nil {
		pages = []imaging.Asset{}
	}
	return json.Marshal(record{
		Version:     SchemaVersion,
		ID:          it.ID,
		Timestamp:   it.Timestamp.UnixMilli(),
		Score:       it.Score,
		MaxScore:    it.MaxScore,
		LetterGrade: it.LetterGrade,
		ClassName:   it.ClassName,
		Pages:       pages,
		Result:      it.Result,
	})
}

// MarshalJSON implements json.Marshaler using EncodeItem.
func (it Item) MarshalJSON() ([]byte, error) {
	return EncodeItem(it)
}

// UnmarshalJSON implements json.Unmarshaler using DecodeItem.
func (it *Item) UnmarshalJSON(b []byte) error {
	v, err := DecodeItem(b)
	if err != nil {
		return err
	}
	*it = v
	return nil
}

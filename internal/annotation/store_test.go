package annotation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_Place(t *testing.T) {
	s := NewStore()

	a, err := s.Place(0, 12.5, 40, Correct, "ignored")
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)
	require.Equal(t, Correct, a.Type)
	require.Empty(t, a.Text)

	b, err := s.Place(1, -3, 140, Incorrect, "")
	require.NoError(t, err)
	require.Equal(t, 0.0, b.X)
	require.Equal(t, 100.0, b.Y)
	require.NotEqual(t, a.ID, b.ID)

	c, err := s.Place(1, 50, 50, Text, "  see margin  ")
	require.NoError(t, err)
	require.Equal(t, "see margin", c.Text)

	require.Equal(t, []Annotation{a, b, c}, s.All())
	require.Equal(t, []Annotation{b, c}, s.ForPage(1))
}

func TestStore_PlaceErrors(t *testing.T) {
	s := NewStore()

	_, err := s.Place(0, 1, 1, Text, "   ")
	require.True(t, errors.Is(err, ErrEmptyText))

	_, err = s.Place(0, 1, 1, Kind("circle"), "")
	require.True(t, errors.Is(err, ErrInvalidKind))

	_, err = s.Place(-1, 1, 1, Correct, "")
	require.Error(t, err)

	require.Zero(t, s.Len())
}

func TestStore_Remove(t *testing.T) {
	s := NewStore()
	a, _ := s.Place(0, 1, 1, Correct, "")
	b, _ := s.Place(0, 2, 2, Incorrect, "")

	require.False(t, s.Remove("missing"))
	require.Equal(t, 2, s.Len())

	require.True(t, s.Remove(a.ID))
	require.Equal(t, []Annotation{b}, s.All())

	require.False(t, s.Remove(a.ID))
}

func TestStore_ReplaceAll(t *testing.T) {
	s := NewStore()
	_, _ = s.Place(0, 1, 1, Correct, "")

	in := []Annotation{
		{ID: "keep", X: 10, Y: 20, Type: Correct},
		{X: 150, Y: -1, Type: Incorrect, PageIndex: -2},
	}
	s.ReplaceAll(in)

	got := s.All()
	require.Len(t, got, 2)
	require.Equal(t, "keep", got[0].ID)
	require.NotEmpty(t, got[1].ID)
	require.Equal(t, 100.0, got[1].X)
	require.Equal(t, 0.0, got[1].Y)
	require.Equal(t, 0, got[1].PageIndex)

	// The caller's slice is not retained.
	in[0].X = 99
	a, ok := s.Get("keep")
	require.True(t, ok)
	require.Equal(t, 10.0, a.X)

	s.Clear()
	require.Zero(t, s.Len())
}

func TestStore_AllReturnsCopy(t *testing.T) {
	s := NewStore()
	_, _ = s.Place(0, 1, 1, Correct, "")

	all := s.All()
	all[0].X = 77
	require.Equal(t, 1.0, s.All()[0].X)
}

func TestStore_RemovePage(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]Annotation{
		{ID: "a", Type: Correct, PageIndex: 0},
		{ID: "b", Type: Correct, PageIndex: 1},
		{ID: "c", Type: Incorrect, PageIndex: 2},
		{ID: "d", Type: Correct, PageIndex: 1},
		{ID: "e", Type: Correct, PageIndex: 3},
	})

	require.Equal(t, 2, s.RemovePage(1))

	got := s.All()
	require.Len(t, got, 3)
	require.Equal(t, "a", got[0].ID)
	require.Equal(t, 0, got[0].PageIndex)
	require.Equal(t, "c", got[1].ID)
	require.Equal(t, 1, got[1].PageIndex)
	require.Equal(t, "e", got[2].ID)
	require.Equal(t, 2, got[2].PageIndex)

	require.Zero(t, s.RemovePage(9))
}

func TestStore_RemovePageKeepsScore(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]Annotation{
		{ID: ScoreID, Type: Text, Text: "5/10", X: ScoreX, Y: ScoreY},
		{ID: "a", Type: Correct, PageIndex: 0},
		{ID: "b", Type: Correct, PageIndex: 1},
	})

	require.Equal(t, 1, s.RemovePage(0))
	got := s.All()
	require.Len(t, got, 2)
	require.True(t, got[0].IsScore())
	require.Equal(t, 0, got[0].PageIndex)
	require.Equal(t, "b", got[1].ID)
	require.Equal(t, 0, got[1].PageIndex)
}

func TestParseKind(t *testing.T) {
	for _, k := range []string{"correct", "incorrect", "text"} {
		got, err := ParseKind(k)
		require.NoError(t, err)
		require.Equal(t, Kind(k), got)
	}
	_, err := ParseKind("Correct")
	require.ErrorIs(t, err, ErrInvalidKind)
}

package annotation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironsheep/grade-overlay-mcp/internal/grading"
)

func ptr[T any](v T) *T { return &v }

func TestFromResult(t *testing.T) {
	res := grading.Result{
		Score:    7.5,
		MaxScore: 10,
		Details: []grading.Detail{
			{IsCorrect: true, X: ptr(20.0), Y: ptr(30.0)},
			{IsCorrect: false, X: ptr(120.0), Y: ptr(-4.0), PageIndex: ptr(2)},
			{IsCorrect: false, X: ptr(50.0)},
			{IsCorrect: true},
		},
	}

	got := FromResult(res)
	require.Len(t, got, 3)

	score := got[0]
	require.Equal(t, ScoreID, score.ID)
	require.True(t, score.IsScore())
	require.Equal(t, Text, score.Type)
	require.Equal(t, "7.5/10", score.Text)
	require.Equal(t, 0, score.PageIndex)
	require.Equal(t, 5.0, score.X)
	require.Equal(t, 2.0, score.Y)

	require.Equal(t, Correct, got[1].Type)
	require.Equal(t, 0, got[1].PageIndex)
	require.Equal(t, 20.0, got[1].X)

	require.Equal(t, Incorrect, got[2].Type)
	require.Equal(t, 2, got[2].PageIndex)
	require.Equal(t, 100.0, got[2].X)
	require.Equal(t, 0.0, got[2].Y)
	require.NotEqual(t, got[1].ID, got[2].ID)
}

func TestFromResult_NoDetails(t *testing.T) {
	got := FromResult(grading.Result{Score: 100, MaxScore: 100})
	require.Len(t, got, 1)
	require.Equal(t, "100/100", got[0].Text)
}

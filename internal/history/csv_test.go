package history

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExportCSV(t *testing.T) {
	a := testItem(t, "a", "7A", time.Date(2024, 2, 29, 23, 30, 0, 0, time.UTC))
	a.Result.Summary = `Said "hi", well done`
	b := testItem(t, "b", "8B", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	b.Score = 9.5
	c := testItem(t, "c", "Class, 9", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))

	var sb strings.Builder
	require.NoError(t, ExportCSV(&sb, []Item{a, b, c}, ""))

	want := "No,Date,Class,Score,Max Score,Summary\r\n" +
		`1,2024-02-29,7A,8,10,"Said ""hi"", well done"` + "\r\n" +
		`2,2024-03-01,8B,9.5,10,"Good work"` + "\r\n" +
		`3,2024-03-02,"Class, 9",8,10,"Good work"` + "\r\n"
	require.Equal(t, want, sb.String())
}

func TestExportCSVByClass(t *testing.T) {
	items := []Item{
		testItem(t, "a", "7A", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)),
		testItem(t, "b", "8B", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
		testItem(t, "c", "7A", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	var sb strings.Builder
	require.NoError(t, ExportCSV(&sb, items, "7A"))
	lines := strings.Split(strings.TrimSuffix(sb.String(), "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[1], "1,2024-01-03,7A,"))
	require.True(t, strings.HasPrefix(lines[2], "2,2024-01-01,7A,"))
}

func TestExportCSVEmpty(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, ExportCSV(&sb, nil, ""))
	require.Equal(t, "No,Date,Class,Score,Max Score,Summary\r\n", sb.String())
}

package history

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// csvHeader is the first row of every export.
var csvHeader = []string{"No", "Date", "Class", "Score", "Max Score", "Summary"}

// ExportCSV writes the items belonging to className, in the given order.
// An empty className exports everything. Dates are UTC YYYY-MM-DD.
// Summary is always quoted; other fields are quoted only when they need it.
func ExportCSV(w io.Writer, items []Item, className string) error {
	bw := bufio.NewWriter(w)
	className = NormalizeClass(className)

	writeRow(bw, csvHeader, -1)
	n := 0
	for _, it := range items {
		if className != "" && NormalizeClass(it.ClassName) != className {
			continue
		}
		n++
		writeRow(bw, []string{
			strconv.Itoa(n),
			it.Timestamp.UTC().Format("2006-01-02"),
			it.ClassName,
			formatScore(it.Score),
			formatScore(it.MaxScore),
			it.Result.Summary,
		}, 5)
	}
	return bw.Flush()
}

// writeRow writes one CRLF-terminated record. The field at forceQuote is
// quoted unconditionally.
func writeRow(w *bufio.Writer, fields []string, forceQuote int) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		if i == forceQuote || strings.ContainsAny(f, ",\"\r\n") {
			w.WriteByte('"')
			w.WriteString(strings.ReplaceAll(f, `"`, `""`))
			w.WriteByte('"')
			continue
		}
		w.WriteString(f)
	}
	w.WriteString("\r\n")
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package format

import (
	"fmt"
	"sort"
	"strings"

	"imgnet/internal/dataset"
	"imgnet/internal/display"
	"imgnet/internal/logging"
	"imgnet/internal/pipeline"
)

// StatsTable renders one stats line per outcome plus the progress.
func StatsTable(m Mode, title string, s pipeline.Stats) string {
	tb := NewTable(m)
	tb.Title(title)
	tb.Header("Outcome", "Rows")
	tb.Row(display.Status("success"), s.Successful)
	tb.Row(display.Status("fail"), s.Failed)
	tb.Row(display.Status("empty"), s.Empty)
	tb.Row(display.Status(""), s.Pending)
	tb.Footer(fmt.Sprintf("Total (%s)", display.Progress(s.Progress)), s.Total)
	tb.Columns(ColumnConfig{Number: 2, Align: AlignRight})
	return tb.String()
}

// RowsTable renders rows against columns, one line per row, prefixed with
// the 1-based row number. Previews are reduced to a mark; long cells are
// truncated to width runes. limit caps the rows shown (0 = all).
func RowsTable(m Mode, columns []string, rows []*dataset.Row, width, limit int) string {
	tb := NewTable(m)
	tb.Header(append([]string{"#"}, columns...)...)
	for i, r := range rows {
		if limit > 0 && i >= limit {
			break
		}
		vals := []any{i + 1}
		for _, c := range columns {
			vals = append(vals, cell(r, c, width))
		}
		tb.Row(vals...)
	}
	if limit > 0 && len(rows) > limit {
		tb.Footer(fmt.Sprintf("+%d more", len(rows)-limit))
	}
	tb.Columns(ColumnConfig{Number: 1, Align: AlignRight})
	return tb.String()
}

func cell(r *dataset.Row, col string, width int) string {
	v := r.String(col)
	switch col {
	case dataset.FieldThumbnail:
		return BoolMark(v != "")
	case dataset.FieldStatus:
		v = display.Status(v)
	}
	if width > 0 {
		v = Truncate(v, width)
	}
	return v
}

// LogTable renders log entries with their time, severity, row and message.
func LogTable(m Mode, entries []logging.Entry) string {
	tb := NewTable(m)
	tb.Header("Time", "Severity", "Row", "Message")
	for _, e := range entries {
		row := ""
		if v, ok := e.Details["row"]; ok {
			row = fmt.Sprint(v)
		}
		tb.Row(e.Clock(), strings.ToUpper(string(e.Severity)), row, e.Msg)
	}
	tb.Columns(
		ColumnConfig{Number: 3, Align: AlignRight},
		ColumnConfig{Number: 4, MaxWidth: 80},
	)
	return tb.String()
}

// FailureCounts groups failed rows by their status and renders the counts,
// most frequent first.
func FailureCounts(m Mode, rows []*dataset.Row) string {
	counts := map[string]int{}
	for _, r := range rows {
		if s := r.Status(); display.IsFailure(s) {
			counts[s]++
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	tb := NewTable(m)
	tb.Header("Failure", "Rows")
	for _, k := range keys {
		tb.Row(display.Status(k), counts[k])
	}
	tb.Columns(ColumnConfig{Number: 2, Align: AlignRight})
	return tb.String()
}

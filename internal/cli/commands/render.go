package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/relstack-labs/relstore/internal/query"
	"github.com/relstack-labs/relstore/pkg/schema"
)

func renderResult(w io.Writer, m *schema.Model, res *query.Result, format string) error {
	switch res.Mode {
	case query.ModeCount:
		_, _ = fmt.Fprintln(w, res.Count)
		return nil
	case query.ModeExplain:
		_, _ = fmt.Fprintln(w, res.Explain)
		return nil
	}

	rows := res.Rows
	if res.Mode == query.ModeFields {
		rows = res.Maps
	}
	cols := resultColumns(m, res)

	switch format {
	case "json":
		return renderJSON(w, rows)
	case "csv":
		return renderCSV(w, cols, rows)
	default:
		return renderTable(w, cols, rows, res.Total)
	}
}

func renderTable(w io.Writer, cols []string, rows []schema.Values, total int64) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(cols))
	for i, col := range cols {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, result := range rows {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = formatValue(result[col])
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d of %d rows)\n", len(rows), total)
	return nil
}

func renderJSON(w io.Writer, rows []schema.Values) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func renderCSV(w io.Writer, cols []string, rows []schema.Values) error {
	_, _ = fmt.Fprintln(w, strings.Join(cols, ","))
	for _, result := range rows {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = escapeCSV(formatValue(result[col]))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

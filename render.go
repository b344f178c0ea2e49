package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"

	"editgrid/internal/grid"
)

const widthSample = 50

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Faint(true).Padding(0, 1)
	editStyle   = lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("8"))
)

// truncateString shortens s to width display cells
func truncateString(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// cellText returns what a cell displays: the NULL marker when enabled, the first line of the value otherwise.
func cellText(t *grid.Table, row, col int) (string, error) {
	value, err := t.GetValue(row, col)
	if err != nil {
		return "", err
	}
	if t.GetIsNull(row, col) && t.Options().IndicateNull {
		return t.Options().NullMarker, nil
	}
	if i := strings.IndexAny(value, "\r\n"); i >= 0 {
		value = value[:i] + "…"
	}
	return value, nil
}

// renderRows draws rows [from, from+count) as a bordered table, the first column holding row labels.
func renderRows(t *grid.Table, from, count int) (string, error) {
	total := t.GetNumberRows()
	if from < 0 || from > total {
		return "", fmt.Errorf("row %d out of range 1..%d", from+1, total)
	}
	to := min(from+count, total)

	widths := make([]int, t.GetNumberCols())
	headers := make([]string, 0, t.GetNumberCols()+1)
	headers = append(headers, "#")
	for col := 0; col < t.GetNumberCols(); col++ {
		headers = append(headers, t.GetColLabelValue(col))
	}

	rows := make([][]string, 0, to-from)
	for row := from; row < to; row++ {
		cells := make([]string, 0, t.GetNumberCols()+1)
		cells = append(cells, t.GetRowLabelValue(row))
		for col := 0; col < t.GetNumberCols(); col++ {
			value, err := cellText(t, row, col)
			if err != nil {
				return "", fmt.Errorf("render row %d: %w", row+1, err)
			}
			cells = append(cells, value)
		}
		rows = append(rows, cells)
	}

	// widths are measured after the window is materialized
	for col := range widths {
		widths[col] = t.SuggestedWidth(col, max(to, widthSample))
	}
	for _, cells := range rows {
		for col := range widths {
			if t.NeedsResizing(col) {
				cells[col+1] = truncateString(cells[col+1], widths[col])
			}
		}
	}

	editRow := t.LastRow()
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return labelStyle
			case !t.IsLineSaved() && from+row == editRow:
				return editStyle
			default:
				return cellStyle
			}
		})

	var b strings.Builder
	b.WriteString(tbl.Render())
	b.WriteString("\n")
	fmt.Fprintf(&b, "rows %d-%d of %d (%d stored)", min(from+1, to), to, total, t.GetNumberStoredRows())
	if !t.IsLineSaved() {
		fmt.Fprintf(&b, ", row %s modified", t.GetRowLabelValue(editRow))
	}
	b.WriteString("\n")
	return b.String(), nil
}

// renderColumns lists the column models, one line each.
func renderColumns(t *grid.Table) string {
	rows := make([][]string, 0, t.GetNumberCols())
	for col, c := range t.Columns() {
		flags := []string{}
		if c.ReadOnly {
			flags = append(flags, "read-only")
		}
		if c.NeedsResize {
			flags = append(flags, "wide")
		}
		rows = append(rows, []string{
			fmt.Sprint(col + 1), c.Name, c.TypeLabel(), c.AttributeSummary(),
			strings.Join(flags, ","), t.GetColDescription(col),
		})
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "name", "type", "attributes", "flags", "description").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return tbl.Render() + "\n"
}

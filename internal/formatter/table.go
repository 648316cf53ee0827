// Package formatter renders CLI reports as aligned pipe tables.
package formatter

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// minWidth keeps the separator at least "---".
const minWidth = 3

// Table holds a header row and data rows. Cells wider than MaxCellWidth
// (when positive) are truncated with "...".
type Table struct {
	Headers      []string
	Rows         [][]string
	MaxCellWidth int
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// Append adds a row. Missing cells render empty; extra cells widen the table.
func (t *Table) Append(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// String renders the table, padding by display width so accented and wide
// characters line up.
func (t *Table) String() string {
	rows := make([][]string, 0, len(t.Rows)+1)
	rows = append(rows, t.clean(t.Headers))

	for _, r := range t.Rows {
		rows = append(rows, t.clean(r))
	}

	colCount := 0
	for _, r := range rows {
		colCount = max(colCount, len(r))
	}

	if colCount == 0 {
		return ""
	}

	widths := make([]int, colCount)
	for i := range widths {
		widths[i] = minWidth
	}

	for _, r := range rows {
		for i, cell := range r {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	var sb strings.Builder

	writeRow(&sb, rows[0], widths)

	sb.WriteString("|")

	for _, w := range widths {
		sb.WriteString(" " + strings.Repeat("-", w) + " |")
	}

	sb.WriteString("\n")

	for _, r := range rows[1:] {
		writeRow(&sb, r, widths)
	}

	return sb.String()
}

func (t *Table) clean(cells []string) []string {
	out := make([]string, len(cells))

	for i, c := range cells {
		c = strings.TrimSpace(strings.ReplaceAll(c, "\n", " "))
		c = strings.ReplaceAll(c, "|", "/")

		if t.MaxCellWidth > 0 {
			c = runewidth.Truncate(c, t.MaxCellWidth, "...")
		}

		out[i] = c
	}

	return out
}

func writeRow(sb *strings.Builder, cells []string, widths []int) {
	sb.WriteString("|")

	for i, w := range widths {
		content := ""
		if i < len(cells) {
			content = cells[i]
		}

		sb.WriteString(" ")
		sb.WriteString(content)
		sb.WriteString(strings.Repeat(" ", w-runewidth.StringWidth(content)))
		sb.WriteString(" |")
	}

	sb.WriteString("\n")
}

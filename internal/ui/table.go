package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column defines a table column. A zero Width fits the widest cell.
type Column struct {
	Title string
	Width int
}

// Row is a slice of cell values.
type Row []string

// Table renders a lipgloss-styled table.
type Table struct {
	Columns []Column
	Rows    []Row
	SelIdx  int // selected row index (-1 = none)
}

// NewTable creates a new table.
func NewTable(cols []Column) *Table {
	return &Table{Columns: cols, SelIdx: -1}
}

// AddRow appends a row.
func (t *Table) AddRow(r Row) {
	t.Rows = append(t.Rows, r)
}

// widths returns the effective width of every column.
func (t *Table) widths() []int {
	w := make([]int, len(t.Columns))
	for i, col := range t.Columns {
		if col.Width > 0 {
			w[i] = col.Width
			continue
		}
		w[i] = len(col.Title)
		for _, row := range t.Rows {
			if i < len(row) && len(row[i]) > w[i] {
				w[i] = len(row[i])
			}
		}
	}
	return w
}

// Render returns the full table as a string. Cells are padded before
// styling so lipgloss never wraps them.
func (t *Table) Render() string {
	var sb strings.Builder
	widths := t.widths()

	cellStyle := lipgloss.NewStyle().Foreground(ColorValue)

	pad := func(s string, width int) string {
		if len(s) >= width {
			return s[:width]
		}
		return s + strings.Repeat(" ", width-len(s))
	}

	var headers []string
	for i, col := range t.Columns {
		headers = append(headers, StyleHeader.Render(pad(col.Title, widths[i])))
	}
	sb.WriteString(strings.Join(headers, " "))
	sb.WriteString("\n")

	var divParts []string
	for i := range t.Columns {
		divParts = append(divParts, StyleMeta.Render(strings.Repeat("-", widths[i])))
	}
	sb.WriteString(strings.Join(divParts, " "))
	sb.WriteString("\n")

	for i, row := range t.Rows {
		var cells []string
		for j := range t.Columns {
			val := ""
			if j < len(row) {
				val = row[j]
			}
			if i == t.SelIdx {
				cells = append(cells, StyleSelected.Render(pad(val, widths[j])))
			} else {
				cells = append(cells, cellStyle.Render(pad(val, widths[j])))
			}
		}
		sb.WriteString(strings.Join(cells, " "))
		sb.WriteString("\n")
	}

	return sb.String()
}

// KeyValueBlock renders a set of key-value pairs in a bordered box.
func KeyValueBlock(title string, pairs [][2]string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(StyleTitle.Render(title))
		sb.WriteString("\n")
	}
	for _, p := range pairs {
		key := StyleMeta.Render(fmt.Sprintf("%-20s", p[0]+":"))
		val := StyleValue.Render(p[1])
		sb.WriteString("  " + key + " " + val + "\n")
	}
	return StyleBorder.Render(sb.String())
}

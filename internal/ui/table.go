package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders rows with simple spacing alignment and no borders.
type Table struct {
	header     []string
	rows       [][]string
	colWidths  []int
	colPadding int
}

// NewTable creates a new table with the specified number of columns
func NewTable(cols int) *Table {
	return &Table{
		colWidths:  make([]int, cols),
		colPadding: 2,
	}
}

// SetHeader sets a bold header row.
func (t *Table) SetHeader(cells ...string) {
	t.header = t.normalize(cells)
}

// AddRow adds a row to the table
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, t.normalize(cells))
}

func (t *Table) normalize(cells []string) []string {
	row := make([]string, len(t.colWidths))
	for i := 0; i < len(t.colWidths) && i < len(cells); i++ {
		row[i] = cells[i]
		// Widths are measured on rendered text so styled cells align.
		if w := lipgloss.Width(cells[i]); w > t.colWidths[i] {
			t.colWidths[i] = w
		}
	}
	return row
}

// SetPadding sets the padding between columns
func (t *Table) SetPadding(padding int) {
	t.colPadding = padding
}

// String renders the table as a string
func (t *Table) String() string {
	if len(t.rows) == 0 && t.header == nil {
		return ""
	}

	var sb strings.Builder
	if t.header != nil {
		t.writeRow(&sb, t.header, true)
	}
	for _, row := range t.rows {
		t.writeRow(&sb, row, false)
	}
	return sb.String()
}

func (t *Table) writeRow(sb *strings.Builder, row []string, bold bool) {
	padding := strings.Repeat(" ", t.colPadding)
	for i, cell := range row {
		if i > 0 {
			sb.WriteString(padding)
		}
		text := cell
		if bold {
			text = Bold.Render(cell)
		}
		sb.WriteString(text)
		// Left-align all columns, pad to column width (except last)
		if i < len(row)-1 {
			sb.WriteString(strings.Repeat(" ", t.colWidths[i]-lipgloss.Width(cell)))
		}
	}
	sb.WriteString("\n")
}

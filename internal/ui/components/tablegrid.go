package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gravitrone/storesync/internal/deep"
)

// TableColumn is one grid column. Width is the content width, separators
// excluded.
type TableColumn struct {
	Header string
	Width  int
	Align  lipgloss.Position
}

// Grid is a table of one-line cells whose column widths follow the widest
// cell. Columns holding only numbers align right.
type Grid struct {
	Columns []TableColumn
	Rows    [][]string
}

const (
	gridIndent = 2
	gridSep    = " │ "
	plainSep   = "  "
)

var (
	gridRuleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#273540"))

	gridHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#436b77")).
			Bold(true)

	gridActiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d7d9da")).
			Background(lipgloss.Color("#1f2530")).
			Bold(true)
)

// RecordGrid lays out records with one column per field path. Nested paths
// ("owner.name") are resolved with deep.Get; missing values render empty.
func RecordGrid(fields []string, records []map[string]any) Grid {
	if len(fields) == 0 {
		fields = []string{"id"}
	}
	rows := make([][]string, len(records))
	for i, rec := range records {
		cells := make([]string, len(fields))
		for j, f := range fields {
			v, _ := deep.Get(rec, f)
			cells[j] = FormatValue(v)
		}
		rows[i] = cells
	}
	return NewGrid(fields, rows)
}

// NewGrid sanitizes the cells and sizes every column to its content.
func NewGrid(headers []string, rows [][]string) Grid {
	g := Grid{
		Columns: make([]TableColumn, len(headers)),
		Rows:    make([][]string, len(rows)),
	}
	for i, h := range headers {
		h = SanitizeOneLine(h)
		g.Columns[i] = TableColumn{Header: h, Width: lipgloss.Width(h)}
	}
	numeric := make([]bool, len(headers))
	seen := make([]bool, len(headers))
	for i := range numeric {
		numeric[i] = true
	}
	for r, row := range rows {
		cells := make([]string, len(headers))
		for c := range cells {
			if c >= len(row) {
				continue
			}
			cell := SanitizeOneLine(row[c])
			cells[c] = cell
			if w := lipgloss.Width(cell); w > g.Columns[c].Width {
				g.Columns[c].Width = w
			}
			if cell == "" {
				continue
			}
			seen[c] = true
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric[c] = false
			}
		}
		g.Rows[r] = cells
	}
	for c := range g.Columns {
		if seen[c] && numeric[c] {
			g.Columns[c].Align = lipgloss.Right
		}
	}
	return g
}

// Slice keeps rows [start, end) and the column widths measured over all rows,
// so a scrolling window does not change the layout.
func (g Grid) Slice(start, end int) Grid {
	if start < 0 {
		start = 0
	}
	if end > len(g.Rows) {
		end = len(g.Rows)
	}
	if start > end {
		start = end
	}
	return Grid{Columns: g.Columns, Rows: g.Rows[start:end]}
}

// Plain renders the grid as unstyled text with upper-cased headers and no
// trailing spaces.
func (g Grid) Plain() string {
	lines := make([]string, 0, len(g.Rows)+1)
	header := make([]string, len(g.Columns))
	for i, col := range g.Columns {
		header[i] = strings.ToUpper(col.Header)
	}
	lines = append(lines, g.plainLine(header))
	for _, row := range g.Rows {
		lines = append(lines, g.plainLine(row))
	}
	return strings.Join(lines, "\n")
}

func (g Grid) plainLine(cells []string) string {
	parts := make([]string, len(g.Columns))
	for i, col := range g.Columns {
		parts[i] = alignCell(cells[i], col.Width, col.Align)
	}
	return strings.TrimRight(strings.Join(parts, plainSep), " ")
}

// Render draws the grid exactly tableWidth cells wide with activeRow
// highlighted (-1 for none). When the content is too wide the widest columns
// give way first; spare width goes to the last column.
func (g Grid) Render(tableWidth, activeRow int) string {
	if tableWidth <= 0 {
		return ""
	}
	if len(g.Columns) == 0 {
		return strings.Repeat(" ", tableWidth)
	}

	widths := fitWidths(g.Columns, tableWidth-gridIndent)
	indent := strings.Repeat(" ", gridIndent)

	header := make([]string, len(g.Columns))
	for i, col := range g.Columns {
		header[i] = gridHeaderStyle.Render(alignCell(col.Header, widths[i], lipgloss.Left))
	}
	out := []string{
		padRight(indent+strings.Join(header, gridRuleStyle.Render(gridSep)), tableWidth),
		gridRuleStyle.Render(padRight(indent+ruleLine(widths), tableWidth)),
	}

	for r, row := range g.Rows {
		cells := make([]string, len(g.Columns))
		for i, col := range g.Columns {
			cells[i] = alignCell(row[i], widths[i], col.Align)
		}
		if r == activeRow {
			line := padRight(indent+strings.Join(cells, gridSep), tableWidth)
			out = append(out, gridActiveStyle.Render(line))
			continue
		}
		out = append(out, padRight(indent+strings.Join(cells, gridRuleStyle.Render(gridSep)), tableWidth))
	}
	return strings.Join(out, "\n")
}

// fitWidths shrinks or grows column widths so that columns plus separators
// fill exactly avail cells. No column drops below one cell.
func fitWidths(columns []TableColumn, avail int) []int {
	widths := make([]int, len(columns))
	sum := 0
	for i, col := range columns {
		widths[i] = max(col.Width, 1)
		sum += widths[i]
	}
	room := avail - (len(columns)-1)*lipgloss.Width(gridSep)
	if room < len(columns) {
		room = len(columns)
	}

	for sum > room {
		widest := 0
		for i := range widths {
			if widths[i] > widths[widest] {
				widest = i
			}
		}
		widths[widest]--
		sum--
	}
	widths[len(widths)-1] += room - sum
	return widths
}

func ruleLine(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w)
	}
	return strings.Join(parts, "─┼─")
}

func alignCell(text string, width int, align lipgloss.Position) string {
	if width <= 0 {
		return ""
	}
	text = ClampTextWidth(text, width)
	if lipgloss.Width(text) > width {
		text = truncateRunes(text, width)
	}
	pad := width - lipgloss.Width(text)
	if pad <= 0 {
		return text
	}
	if align == lipgloss.Right {
		return strings.Repeat(" ", pad) + text
	}
	return text + strings.Repeat(" ", pad)
}

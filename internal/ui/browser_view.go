package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gravitrone/storesync/internal/deep"
	"github.com/gravitrone/storesync/internal/ui/components"
)

const defaultWidth = 100

func (m BrowserModel) View() string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}

	sections := []string{m.renderHeader()}
	switch m.mode {
	case modeSearch:
		sections = append(sections, m.renderSearch(width))
	case modeDetail:
		sections = append(sections, m.renderDetail(width))
	case modeEdit:
		sections = append(sections, m.renderDetail(width),
			components.InputDialog("Edit "+m.editField, m.input))
	case modeCreate:
		sections = append(sections, m.renderList(width),
			components.InputDialog("New "+m.store.Name()+" title", m.input))
	case modeConfirmDelete:
		label := ""
		if item, ok := m.selectedItem(); ok {
			label = m.store.Name() + " " + components.FormatValue(item["id"])
		}
		sections = append(sections, m.renderList(width),
			components.ConfirmDialog("Delete", "Delete "+label+"?"))
	default:
		sections = append(sections, m.renderList(width))
	}
	if m.err != "" {
		sections = append(sections, components.ErrorBox("Error", m.err, width))
	}
	sections = append(sections, components.StatusBar(m.flashes(), m.hints(), width))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m BrowserModel) renderHeader() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(capitalize(m.store.NamePlural())))
	for i, label := range m.toggles {
		chip := fmt.Sprintf("%d %s", i+1, label)
		if m.toggleActive(label) {
			b.WriteString(" " + ChipActiveStyle.Render(chip))
		} else {
			b.WriteString(" " + ChipStyle.Render(chip))
		}
	}
	if m.pending > 0 {
		b.WriteString("  " + MutedStyle.Render("loading..."))
	}
	return b.String()
}

func (m BrowserModel) toggleActive(label string) bool {
	tg, ok := m.def.Toggles[label]
	if !ok {
		return false
	}
	v, ok := m.snap.QueryFilter[tg.Key]
	if !ok {
		return false
	}
	if tg.Value == nil {
		return !deep.IsEmpty(v)
	}
	return deep.Equal(v, tg.Value)
}

func (m BrowserModel) renderList(width int) string {
	title := fmt.Sprintf("%s %d/%d", m.store.NamePlural(), len(m.snap.Items), m.snap.Total)
	if len(m.snap.Items) == 0 {
		return components.TitledBox(title, MutedStyle.Render("No records."), width)
	}

	visible := len(m.list.Visible())
	start := m.list.RelToAbs(0)
	active := -1
	for i := 0; i < visible; i++ {
		if m.list.IsSelected(m.list.RelToAbs(i)) {
			active = i
		}
	}
	grid := components.RecordGrid(m.def.Columns, m.snap.Items).Slice(start, start+visible)
	return components.TitledBox(title, grid.Render(components.BoxContentWidth(width), active), width)
}

func (m BrowserModel) renderDetail(width int) string {
	title := m.store.Name()
	if id := m.focusedID(); id != nil {
		title += " " + components.FormatValue(id)
	}
	rows := make([]components.TableRow, len(m.keys))
	for i, k := range m.keys {
		rows[i] = components.TableRow{Label: k, Value: components.FormatValue(m.snap.Item[k])}
	}
	return components.Table(title, rows, width, m.fields.Selected())
}

func (m BrowserModel) renderSearch(width int) string {
	input := components.Box("> "+components.SanitizeOneLine(m.query)+AccentStyle.Render("█"), width)

	var b strings.Builder

	results := m.snap.Search.Results
	switch {
	case strings.TrimSpace(m.query) == "":
		b.WriteString(MutedStyle.Render("Type to search."))
	case len(results) == 0 && m.pending > 0:
		b.WriteString(MutedStyle.Render("Searching..."))
	case len(results) == 0:
		b.WriteString(MutedStyle.Render("No matches."))
	default:
		maxLabelWidth := components.BoxContentWidth(width) - 4
		for i, r := range results {
			label := components.FormatValue(r["id"]) + "  " + components.FormatValue(r["title"])
			label = components.ClampTextWidth(label, maxLabelWidth)
			if i == m.snap.Search.SelectedIndex {
				b.WriteString(SelectedStyle.Render("  > " + label))
			} else {
				b.WriteString(NormalStyle.Render("    " + label))
			}
			if i < len(results)-1 {
				b.WriteString("\n")
			}
		}
	}
	title := fmt.Sprintf("Search %s (%d)", m.store.NamePlural(), m.snap.Search.Total)
	return lipgloss.JoinVertical(lipgloss.Left, input, components.TitledBox(title, b.String(), width))
}

// flashes lists the transient save/insert indicators currently raised.
func (m BrowserModel) flashes() []string {
	var out []string
	if m.snap.InsertStatus {
		out = append(out, "inserted")
	}
	keys := make([]string, 0, len(m.snap.Saved))
	for k, on := range m.snap.Saved {
		if on {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, "saved "+k)
	}
	return out
}

func (m BrowserModel) hints() []string {
	switch m.mode {
	case modeSearch:
		return []string{
			components.Hint("↑/↓", "Select"),
			components.Hint("enter", "Open"),
			components.Hint("esc", "Back"),
		}
	case modeDetail:
		return []string{
			components.Hint("↑/↓", "Field"),
			components.Hint("enter", "Edit"),
			components.Hint("r", "Reload"),
			components.Hint("esc", "Back"),
		}
	case modeEdit, modeCreate:
		return []string{
			components.Hint("enter", "Save"),
			components.Hint("esc", "Cancel"),
		}
	case modeConfirmDelete:
		return []string{
			components.Hint("y", "Delete"),
			components.Hint("n", "Keep"),
		}
	}
	hints := []string{
		components.Hint("↑/↓", "Move"),
		components.Hint("enter", "Open"),
		components.Hint("/", "Search"),
		components.Hint("n", "More"),
		components.Hint("c", "New"),
		components.Hint("d", "Delete"),
		components.Hint("r", "Reload"),
	}
	if len(m.toggles) > 0 {
		hints = append(hints, components.Hint("1-9", "Filter"), components.Hint("x", "Clear"))
	}
	return append(hints, components.Hint("q", "Quit"))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

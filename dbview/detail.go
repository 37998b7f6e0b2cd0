package dbview

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	detailTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).MarginBottom(1)
	detailLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(16)
	detailFrame = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("12")).Padding(1, 2)
	detailHint  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).MarginTop(1)
)

// DetailPanel presents one row: the title-like column on top and a cell
// editor for every other column.
type DetailPanel struct {
	rowID   string
	title   *CellEditor
	fields  []*CellEditor
	columns []ColumnDef
	store   *StateStore
	calls   *caller
}

func newDetailPanel(row Row, columns []ColumnDef, store *StateStore, calls *caller, save func(colID string, v Value)) *DetailPanel {
	p := &DetailPanel{rowID: row.ID, columns: columns, store: store, calls: calls}
	titleCol, hasTitle := TitleColumn(columns)
	for _, c := range columns {
		colID := c.ID
		ed := NewCellEditor(c, row.Get(c.ID), func(v Value) { save(colID, v) })
		if hasTitle && c.ID == titleCol.ID {
			p.title = ed
			continue
		}
		p.fields = append(p.fields, ed)
	}
	return p
}

func (p *DetailPanel) RowID() string { return p.rowID }
func (p *DetailPanel) Title() *CellEditor { return p.title }
func (p *DetailPanel) Fields() []*CellEditor { return p.fields }

// Editors returns the title editor followed by the field editors.
func (p *DetailPanel) Editors() []*CellEditor {
	var out []*CellEditor
	if p.title != nil {
		out = append(out, p.title)
	}
	return append(out, p.fields...)
}

// Editor returns the editor of a column, or nil.
func (p *DetailPanel) Editor(colID string) *CellEditor {
	for _, e := range p.Editors() {
		if e.Column.ID == colID {
			return e
		}
	}
	return nil
}

// Editing reports whether any editor is in edit mode.
func (p *DetailPanel) Editing() bool {
	for _, e := range p.Editors() {
		if e.Editing() {
			return true
		}
	}
	return false
}

// Refresh pushes the host's current row values into idle editors.
func (p *DetailPanel) Refresh(row Row) {
	for _, e := range p.Editors() {
		e.SetValue(row.Get(e.Column.ID))
	}
}

// Delete asks the host to delete the row and closes the panel without
// waiting for the result.
func (p *DetailPanel) Delete() {
	p.calls.delete(p.rowID)
	p.Close()
}

// Navigate hands the row to the host's navigation callback.
func (p *DetailPanel) Navigate() {
	p.calls.navigate(p.rowID)
}

// Link resolves the navigation target of a column for this row.
func (p *DetailPanel) Link(colID string) (string, bool) {
	c, ok := FindColumn(p.columns, colID)
	if !ok || c.NavigateTo == nil {
		return "", false
	}
	return c.NavigateTo(p.rowID)
}

func (p *DetailPanel) Close() {
	p.store.CloseDetail()
}

// Render draws the panel. focus is the column id of the selected editor.
func (p *DetailPanel) Render(width int, focus string) string {
	var lines []string
	if p.title != nil {
		t := p.title.Display()
		if p.title.Editing() {
			t = p.title.Draft() + "▏"
		}
		if strings.TrimSpace(t) == "" {
			t = "Untitled"
		}
		if focus == p.title.Column.ID {
			t = cursorStyle.Render(t)
		}
		lines = append(lines, detailTitle.Render(t))
	}
	for _, e := range p.fields {
		val := StyleValue(e.Column, e.Value(), 20)
		if e.Editing() {
			val = editingView(e)
		}
		label := detailLabel.Render(fit(e.Column.Label, 15))
		if focus == e.Column.ID {
			label = cursorStyle.Render(fit(e.Column.Label, 15)) + " "
		}
		lines = append(lines, label+val)
	}
	lines = append(lines, detailHint.Render("enter edit · space toggle · d delete · o open · esc close"))

	st := detailFrame
	if width > 8 {
		st = st.Width(width - 4)
	}
	return st.Render(strings.Join(lines, "\n"))
}

// editingView shows the in-progress edit: the draft for text, the option
// list for pickers.
func editingView(e *CellEditor) string {
	switch e.Column.Type {
	case TypeSelect, TypeBadge:
		opts := make([]string, 0, len(e.Column.Options))
		for _, o := range e.Column.Options {
			opts = append(opts, badge(e.Column.LabelFor(o.Value), o.Color))
		}
		return strings.Join(opts, " ")
	case TypeMultiSelect:
		opts := make([]string, 0, len(e.Column.Options))
		for _, o := range e.Column.Options {
			mark := "○ "
			if e.Selected(o.Value) {
				mark = "● "
			}
			opts = append(opts, mark+e.Column.LabelFor(o.Value))
		}
		return strings.Join(opts, "  ")
	}
	return e.Draft() + "▏"
}

package dbview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const DefaultPageSize = 25

// TableSection is one group of table rows. Ungrouped tables have a single
// section with an empty label.
type TableSection struct {
	Group
	Collapsed bool
}

// TableLayout is the computed shape of one table render.
type TableLayout struct {
	Columns   []ColumnDef
	Widths    []int
	Sections  []TableSection
	Paginated bool
	Page      int
	PageCount int
	Total     int
}

// Table renders rows as a grid with resizable, reorderable columns.
// Pagination applies only while ungrouped.
type Table struct {
	PageSize  int
	Collapsed CollapseSet
	Resize    *ColumnResize
	Reorder   *ColumnReorder

	page int
	last TableLayout
}

func NewTable(hub *PointerHub, store *StateStore) *Table {
	t := &Table{
		PageSize:  DefaultPageSize,
		Collapsed: CollapseSet{},
		Resize:    NewColumnResize(hub),
		Reorder:   NewColumnReorder(hub, store),
	}
	t.Reorder.HitTest = t.HeaderAt
	return t
}

func (t *Table) Mode() ViewMode { return ViewTable }

func (t *Table) Page() int { return t.page }

// SetPage selects a zero-based page. Out of range pages clamp on the next
// layout.
func (t *Table) SetPage(n int) {
	if n < 0 {
		n = 0
	}
	t.page = n
}

func (t *Table) NextPage() { t.SetPage(t.page + 1) }
func (t *Table) PrevPage() { t.SetPage(t.page - 1) }

// Layout computes widths, sections and the current page for f.
func (t *Table) Layout(f Frame) TableLayout {
	l := TableLayout{Columns: f.Columns, Total: len(f.Rows), Page: 0, PageCount: 1}
	for _, c := range f.Columns {
		l.Widths = append(l.Widths, cellChars(t.Resize.Width(c)))
	}

	if f.GroupField != "" && f.Groups != nil {
		for _, g := range f.Groups {
			l.Sections = append(l.Sections, TableSection{Group: g, Collapsed: t.Collapsed.Collapsed(g.Label)})
		}
		t.last = l
		return l
	}

	size := t.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	l.Paginated = true
	if l.Total > 0 {
		l.PageCount = (l.Total + size - 1) / size
	}
	if t.page >= l.PageCount {
		t.page = l.PageCount - 1
	}
	l.Page = t.page
	start := l.Page * size
	end := start + size
	if end > l.Total {
		end = l.Total
	}
	l.Sections = []TableSection{{Group: Group{Rows: f.Rows[start:end]}}}
	t.last = l
	return l
}

// HeaderAt returns the column whose header spans pixel x in the last
// layout, or "" outside every header.
func (t *Table) HeaderAt(x, _ int) string {
	pos := 0
	for i, c := range t.last.Columns {
		w := t.last.Widths[i] * PixelsPerCell
		if x >= pos && x < pos+w {
			return c.ID
		}
		pos += w + PixelsPerCell
	}
	return ""
}

// BorderAt returns the column whose right border is within one cell of
// pixel x, for starting a resize.
func (t *Table) BorderAt(x int) (ColumnDef, bool) {
	pos := 0
	for i, c := range t.last.Columns {
		pos += t.last.Widths[i] * PixelsPerCell
		if x >= pos-PixelsPerCell && x <= pos {
			return c, true
		}
		pos += PixelsPerCell
	}
	return ColumnDef{}, false
}

func (t *Table) Render(f Frame) string {
	l := t.Layout(f)
	if len(l.Columns) == 0 {
		return dimStyle.Render("No visible columns")
	}

	var b strings.Builder
	headers := make([]string, len(l.Columns))
	for i, c := range l.Columns {
		label := c.Label
		if f.Sort.Field == c.ID {
			if f.Sort.Direction == SortDesc {
				label += " ↓"
			} else {
				label += " ↑"
			}
		}
		if t.Reorder.Active() && t.Reorder.Over() == c.ID {
			label = "▏" + label
		}
		headers[i] = headerStyle.Render(fit(label, l.Widths[i]))
	}
	writeLine(&b, strings.Join(headers, " "), f.Width)

	if l.Total == 0 {
		writeLine(&b, dimStyle.Render("No rows"), f.Width)
		return strings.TrimRight(b.String(), "\n")
	}

	for _, s := range l.Sections {
		if s.Label != "" {
			writeLine(&b, groupHeader(s.Group, s.Collapsed), f.Width)
			if s.Collapsed {
				continue
			}
		}
		for _, r := range s.Rows {
			cells := make([]string, len(l.Columns))
			for i, c := range l.Columns {
				cell := fit(StyleValue(c, r.Get(c.ID), l.Widths[i]), l.Widths[i])
				if r.ID == f.Cursor.RowID && c.ID == f.Cursor.ColumnID {
					cell = cursorStyle.Render(ansi.Strip(cell))
				}
				cells[i] = cell
			}
			writeLine(&b, strings.Join(cells, " "), f.Width)
		}
	}

	if l.Paginated && l.PageCount > 1 {
		writeLine(&b, dimStyle.Render(fmt.Sprintf("Page %d/%d · %d rows", l.Page+1, l.PageCount, l.Total)), f.Width)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeLine(b *strings.Builder, line string, width int) {
	if width > 0 && lipgloss.Width(line) > width {
		line = ansi.Truncate(line, width, "")
	}
	b.WriteString(line)
	b.WriteByte('\n')
}

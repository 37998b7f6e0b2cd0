package dbview

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// PixelsPerCell converts column width hints into terminal cells.
const PixelsPerCell = 10

// Cursor addresses the focused cell.
type Cursor struct {
	RowID    string
	ColumnID string
}

// Stats is the display-only aggregate supplied by the host.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus,omitempty"`
}

// Frame is everything a renderer needs for one pass. Rows are already
// filtered and sorted; Groups is nil when grouping is off.
type Frame struct {
	Rows       []Row
	Columns    []ColumnDef
	AllColumns []ColumnDef
	Groups     []Group
	GroupField string
	Sort       SortState
	Width      int
	Cursor     Cursor
	Stats      *Stats
}

// Renderer is one layout strategy over the shared pipeline output.
type Renderer interface {
	Mode() ViewMode
	Render(f Frame) string
}

// TitleColumn picks the title-like column: id "title" or "name", else the
// first text column, else the first column.
func TitleColumn(columns []ColumnDef) (ColumnDef, bool) {
	for _, c := range columns {
		if c.ID == "title" || c.ID == "name" {
			return c, true
		}
	}
	for _, c := range columns {
		if c.Type == TypeText {
			return c, true
		}
	}
	if len(columns) > 0 {
		return columns[0], true
	}
	return ColumnDef{}, false
}

func titleOf(r Row, columns []ColumnDef) string {
	col, ok := TitleColumn(columns)
	if !ok {
		return r.ID
	}
	t := FormatValue(col, r.Get(col.ID))
	if strings.TrimSpace(t) == "" {
		return "Untitled"
	}
	return t
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cursorStyle   = lipgloss.NewStyle().Background(lipgloss.Color("4")).Foreground(lipgloss.Color("15"))
	groupStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	cardStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).BorderForeground(lipgloss.Color("240"))
	cardFocus     = cardStyle.BorderForeground(lipgloss.Color("10"))
	laneStyle     = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, true, false, false).BorderForeground(lipgloss.Color("240")).PaddingRight(1)
	progressFill  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	progressEmpty = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var namedColors = map[string]string{
	"gray":   "8",
	"grey":   "8",
	"red":    "9",
	"green":  "10",
	"yellow": "11",
	"blue":   "12",
	"purple": "13",
	"cyan":   "14",
	"white":  "15",
	"orange": "208",
	"pink":   "205",
}

func optionColor(c string) lipgloss.Color {
	if code, ok := namedColors[strings.ToLower(c)]; ok {
		return lipgloss.Color(code)
	}
	return lipgloss.Color(c)
}

func badge(text, color string) string {
	st := lipgloss.NewStyle().Padding(0, 1)
	if color != "" {
		st = st.Foreground(lipgloss.Color("0")).Background(optionColor(color))
	} else {
		st = st.Foreground(lipgloss.Color("15")).Background(lipgloss.Color("240"))
	}
	return st.Render(text)
}

// StyleValue renders a cell for display, using option colors and a bar for
// progress columns.
func StyleValue(col ColumnDef, v Value, width int) string {
	switch col.Type {
	case TypeSelect, TypeBadge:
		raw := v.Stringify()
		if raw == "" {
			return ""
		}
		o, _ := col.OptionFor(raw)
		return badge(col.LabelFor(raw), o.Color)
	case TypeMultiSelect:
		items := v.Items()
		if v.Kind() != KindList {
			items = splitValueList(v.Stringify())
		}
		parts := make([]string, 0, len(items))
		for _, it := range items {
			o, _ := col.OptionFor(it)
			parts = append(parts, badge(col.LabelFor(it), o.Color))
		}
		return strings.Join(parts, " ")
	case TypeProgress:
		if v.IsNull() || v.Stringify() == "" {
			return ""
		}
		n, _ := ParseFloatPrefix(v.Stringify())
		return progressBar(ClampProgress(n), width)
	case TypeURL, TypeLink, TypeEmail:
		return lipgloss.NewStyle().Underline(true).Render(FormatValue(col, v))
	}
	return FormatValue(col, v)
}

func progressBar(pct float64, width int) string {
	label := fmt.Sprintf(" %3.0f%%", pct)
	bar := width - len(label)
	if bar < 4 {
		return strings.TrimSpace(label)
	}
	filled := int(math.Round(pct / 100 * float64(bar)))
	return progressFill.Render(strings.Repeat("█", filled)) +
		progressEmpty.Render(strings.Repeat("░", bar-filled)) + label
}

// fit truncates or pads s to exactly width terminal cells.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) > width {
		s = ansi.Truncate(s, width, "…")
	}
	if pad := width - lipgloss.Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

func cellChars(px int) int {
	n := px / PixelsPerCell
	if n < 4 {
		n = 4
	}
	return n
}

// sections turns the frame into renderable sections: the groups when
// grouping is on, else one unlabeled section.
func sections(f Frame) []Group {
	if f.GroupField == "" || f.Groups == nil {
		return []Group{{Rows: f.Rows}}
	}
	return f.Groups
}

func groupHeader(g Group, collapsed bool) string {
	marker := "▾"
	if collapsed {
		marker = "▸"
	}
	label := g.Label
	if g.Color != "" {
		label = badge(g.Label, g.Color)
	}
	return groupStyle.Render(marker+" ") + label + dimStyle.Render(fmt.Sprintf("  %d", len(g.Rows)))
}

// RendererSet holds one renderer per view mode.
type RendererSet struct {
	Table   *Table
	Board   *Board
	Gallery *Gallery
	List    *ListView
}

// NewRendererSet builds the four renderers. The table's gestures use hub.
func NewRendererSet(hub *PointerHub, store *StateStore) *RendererSet {
	return &RendererSet{
		Table:   NewTable(hub, store),
		Board:   NewBoard(),
		Gallery: NewGallery(),
		List:    NewListView(),
	}
}

// For returns the renderer of a view mode, defaulting to the table.
func (s *RendererSet) For(mode ViewMode) Renderer {
	switch mode {
	case ViewBoard:
		return s.Board
	case ViewGallery:
		return s.Gallery
	case ViewList:
		return s.List
	}
	return s.Table
}

// Collapse returns the collapse set of the renderer for mode.
func (s *RendererSet) Collapse(mode ViewMode) CollapseSet {
	switch mode {
	case ViewBoard:
		return s.Board.Collapsed
	case ViewGallery:
		return s.Gallery.Collapsed
	case ViewList:
		return s.List.Collapsed
	}
	return s.Table.Collapsed
}

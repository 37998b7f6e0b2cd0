package dbview

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Board renders rows as cards in lanes keyed by a select or badge column.
type Board struct {
	Collapsed CollapseSet
}

func NewBoard() *Board { return &Board{Collapsed: CollapseSet{}} }

func (b *Board) Mode() ViewMode { return ViewBoard }

// GroupColumn resolves the lane column: the frame's group field, else the
// first select or badge column that declares options.
func (b *Board) GroupColumn(f Frame) (ColumnDef, bool) {
	if f.GroupField != "" {
		if c, ok := FindColumn(f.AllColumns, f.GroupField); ok {
			return c, true
		}
	}
	for _, c := range f.AllColumns {
		if isTag(c) && len(c.Options) > 0 {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// Lanes returns one lane per option of the group column in declared order.
// Rows matching no option land in a trailing ungrouped lane, which is only
// present when non-empty. A column without options yields one lane per
// distinct value in first-encountered order.
func (b *Board) Lanes(f Frame) []CardSection {
	card := func(r Row) Card {
		return newCard(r, f, 0, isBadge)
	}
	col, ok := b.GroupColumn(f)
	if !ok {
		lane := CardSection{Label: "All", Collapsed: b.Collapsed.Collapsed("All")}
		for _, r := range f.Rows {
			lane.Cards = append(lane.Cards, card(r))
		}
		return []CardSection{lane}
	}

	if len(col.Options) == 0 {
		var lanes []CardSection
		for _, g := range GroupRows(f.Rows, col.ID, f.AllColumns) {
			lane := CardSection{Key: g.Key, Label: g.Label, Color: g.Color, Collapsed: b.Collapsed.Collapsed(g.Label)}
			for _, r := range g.Rows {
				lane.Cards = append(lane.Cards, card(r))
			}
			lanes = append(lanes, lane)
		}
		return lanes
	}

	lanes := make([]CardSection, len(col.Options))
	index := make(map[string]int, len(col.Options))
	for i, o := range col.Options {
		label := o.Label
		if label == "" {
			label = o.Value
		}
		lanes[i] = CardSection{Key: o.Value, Label: label, Color: o.Color, Collapsed: b.Collapsed.Collapsed(label)}
		index[o.Value] = i
	}
	rest := CardSection{Label: UngroupedLabel, Collapsed: b.Collapsed.Collapsed(UngroupedLabel)}
	for _, r := range f.Rows {
		if i, ok := index[r.Get(col.ID).Stringify()]; ok {
			lanes[i].Cards = append(lanes[i].Cards, card(r))
			continue
		}
		rest.Cards = append(rest.Cards, card(r))
	}
	if len(rest.Cards) > 0 {
		lanes = append(lanes, rest)
	}
	return lanes
}

func (b *Board) Render(f Frame) string {
	lanes := b.Lanes(f)
	width := 28
	if f.Width > 0 && len(lanes) > 0 {
		width = f.Width/len(lanes) - 2
		if width < 20 {
			width = 20
		}
	}

	cols := make([]string, 0, len(lanes))
	for _, lane := range lanes {
		head := groupHeader(Group{Label: lane.Label, Color: lane.Color, Rows: make([]Row, len(lane.Cards))}, lane.Collapsed)
		parts := []string{fit(head, width)}
		if !lane.Collapsed {
			for _, c := range lane.Cards {
				parts = append(parts, renderCard(c, width-2, c.RowID == f.Cursor.RowID, false))
			}
			if len(lane.Cards) == 0 {
				parts = append(parts, dimStyle.Render(fit("No cards", width)))
			}
		}
		cols = append(cols, laneStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// renderCard draws a bordered card. Labeled fields print as "label: text",
// otherwise fields render as badges on one line.
func renderCard(c Card, width int, focused, labeled bool) string {
	inner := width - 4
	if inner < 8 {
		inner = 8
	}
	lines := []string{titleStyle.Render(fit(c.Title, inner))}
	if labeled {
		for _, f := range c.Fields {
			lines = append(lines, fit(dimStyle.Render(f.Label+": ")+f.Text, inner))
		}
	} else if len(c.Fields) > 0 {
		tags := make([]string, 0, len(c.Fields))
		for _, f := range c.Fields {
			tags = append(tags, badge(f.Text, f.Color))
		}
		lines = append(lines, fit(strings.Join(tags, " "), inner))
	}
	st := cardStyle
	if focused {
		st = cardFocus
	}
	return st.Width(inner + 2).Render(strings.Join(lines, "\n"))
}

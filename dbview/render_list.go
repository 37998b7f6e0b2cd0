package dbview

import "strings"

const listTags = 3

// ListView renders one line per row: the title and a few tags.
type ListView struct {
	Collapsed CollapseSet
}

func NewListView() *ListView { return &ListView{Collapsed: CollapseSet{}} }

func (l *ListView) Mode() ViewMode { return ViewList }

// Sections returns the list items of f. Tags are the first three non-empty
// select or badge values.
func (l *ListView) Sections(f Frame) []CardSection {
	return cardSections(f, l.Collapsed, func(r Row) Card {
		return newCard(r, f, listTags, isTag)
	})
}

func (l *ListView) Render(f Frame) string {
	if len(f.Rows) == 0 {
		return dimStyle.Render("No rows")
	}
	var b strings.Builder
	for _, s := range l.Sections(f) {
		if s.Label != "" {
			writeLine(&b, groupHeader(Group{Label: s.Label, Color: s.Color, Rows: make([]Row, len(s.Cards))}, s.Collapsed), f.Width)
			if s.Collapsed {
				continue
			}
		}
		for _, c := range s.Cards {
			title := titleStyle.Render(c.Title)
			marker := "  "
			if c.RowID == f.Cursor.RowID {
				marker = cursorStyle.Render("›") + " "
			}
			tags := make([]string, 0, len(c.Fields))
			for _, t := range c.Fields {
				tags = append(tags, badge(t.Text, t.Color))
			}
			line := marker + title
			if len(tags) > 0 {
				line += "  " + strings.Join(tags, " ")
			}
			writeLine(&b, line, f.Width)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

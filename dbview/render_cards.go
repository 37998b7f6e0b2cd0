package dbview

// CardField is one labeled value shown on a card or list item.
type CardField struct {
	ColumnID string
	Label    string
	Text     string
	Color    string
}

// Card is the compact form of a row used by the board, gallery and list.
type Card struct {
	RowID  string
	Title  string
	Fields []CardField
}

func newCard(r Row, f Frame, limit int, keep func(ColumnDef) bool) Card {
	title, _ := TitleColumn(f.AllColumns)
	return Card{RowID: r.ID, Title: titleOf(r, f.AllColumns), Fields: cardFields(r, f.Columns, title.ID, limit, keep)}
}

// CardSection is a lane of the board or a group of the gallery and list.
// Key is the raw value rows in the section carry for the group column.
type CardSection struct {
	Key       string
	Label     string
	Color     string
	Collapsed bool
	Cards     []Card
}

// cardFields collects up to limit non-empty fields of r, skipping the title
// column and any column keep rejects. limit <= 0 means no limit.
func cardFields(r Row, columns []ColumnDef, titleID string, limit int, keep func(ColumnDef) bool) []CardField {
	var out []CardField
	for _, c := range columns {
		if c.ID == titleID || (keep != nil && !keep(c)) {
			continue
		}
		v := r.Get(c.ID)
		text := FormatValue(c, v)
		if v.IsNull() || text == "" {
			continue
		}
		f := CardField{ColumnID: c.ID, Label: c.Label, Text: text}
		if o, ok := c.OptionFor(v.Stringify()); ok {
			f.Color = o.Color
		}
		out = append(out, f)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func isTag(c ColumnDef) bool { return c.Type == TypeSelect || c.Type == TypeBadge }

func isBadge(c ColumnDef) bool { return c.Type == TypeBadge }

// cardSections splits f into grouped sections of cards built by mk.
func cardSections(f Frame, collapsed CollapseSet, mk func(Row) Card) []CardSection {
	var out []CardSection
	for _, g := range sections(f) {
		s := CardSection{Key: g.Key, Label: g.Label, Color: g.Color, Collapsed: g.Label != "" && collapsed.Collapsed(g.Label)}
		for _, r := range g.Rows {
			s.Cards = append(s.Cards, mk(r))
		}
		out = append(out, s)
	}
	return out
}

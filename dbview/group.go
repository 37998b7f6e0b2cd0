package dbview

// UngroupedLabel labels rows whose group value resolves to empty.
const UngroupedLabel = "(ungrouped)"

// Group is a labeled partition of rows sharing one resolved value.
type Group struct {
	Key   string
	Label string
	Color string
	Rows  []Row
}

// GroupRows partitions rows by the resolved value of field. Groups appear in
// first-encountered order and keep the input order of their rows.
func GroupRows(rows []Row, field string, columns []ColumnDef) []Group {
	if field == "" {
		return nil
	}
	col, _ := FindColumn(columns, field)

	var groups []Group
	index := make(map[string]int)
	for _, r := range rows {
		raw := r.Get(field).Stringify()
		label := raw
		color := ""
		if o, ok := col.OptionFor(raw); ok {
			if o.Label != "" {
				label = o.Label
			}
			color = o.Color
		}
		if label == "" {
			label = UngroupedLabel
		}
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, Group{Key: raw, Label: label, Color: color})
		}
		groups[i].Rows = append(groups[i].Rows, r)
	}
	return groups
}

// CollapseSet tracks collapsed group labels for one renderer.
type CollapseSet map[string]bool

func (c CollapseSet) Toggle(label string) {
	if c[label] {
		delete(c, label)
		return
	}
	c[label] = true
}

func (c CollapseSet) Collapsed(label string) bool { return c[label] }

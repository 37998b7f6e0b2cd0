package dbview

import "fmt"

// ColumnType is the logical type of a column. It selects the inline editor,
// the read-mode formatting and the renderer affordances for a cell.
type ColumnType string

const (
	TypeText        ColumnType = "text"
	TypeSelect      ColumnType = "select"
	TypeNumber      ColumnType = "number"
	TypeProgress    ColumnType = "progress"
	TypeRelation    ColumnType = "relation"
	TypeDate        ColumnType = "date"
	TypeBadge       ColumnType = "badge"
	TypeLink        ColumnType = "link"
	TypeMultiSelect ColumnType = "multi_select"
	TypeCheckbox    ColumnType = "checkbox"
	TypeURL         ColumnType = "url"
	TypeEmail       ColumnType = "email"
	TypePhone       ColumnType = "phone"
)

var columnTypes = []ColumnType{
	TypeText, TypeSelect, TypeNumber, TypeProgress, TypeRelation, TypeDate, TypeBadge,
	TypeLink, TypeMultiSelect, TypeCheckbox, TypeURL, TypeEmail, TypePhone,
}

// ColumnTypes lists every supported column type in declaration order.
func ColumnTypes() []ColumnType {
	return append([]ColumnType{}, columnTypes...)
}

// Valid reports whether t is a known column type.
func (t ColumnType) Valid() bool {
	for _, ct := range columnTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// HasOptions reports whether values of this type are looked up in the
// column's option list.
func (t ColumnType) HasOptions() bool {
	return t == TypeSelect || t == TypeBadge || t == TypeMultiSelect
}

// Option is one enum-like value of a select, badge or multi_select column.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// ColumnDef describes one logical property of the rows.
type ColumnDef struct {
	ID         string     `json:"id" yaml:"id"`
	Label      string     `json:"label" yaml:"label"`
	Type       ColumnType `json:"type" yaml:"type"`
	Options    []Option   `json:"options,omitempty" yaml:"options,omitempty"`
	Width      int        `json:"width,omitempty" yaml:"width,omitempty"`
	Hidden     bool       `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Editable   *bool      `json:"editable,omitempty" yaml:"editable,omitempty"`
	Sortable   *bool      `json:"sortable,omitempty" yaml:"sortable,omitempty"`
	Filterable *bool      `json:"filterable,omitempty" yaml:"filterable,omitempty"`

	// NavigateTo maps a row id to a destination. It belongs to the host.
	NavigateTo func(rowID string) (string, bool) `json:"-" yaml:"-"`
}

func (c ColumnDef) IsEditable() bool { return c.Editable == nil || *c.Editable }
func (c ColumnDef) IsSortable() bool { return c.Sortable == nil || *c.Sortable }
func (c ColumnDef) IsFilterable() bool { return c.Filterable == nil || *c.Filterable }

// OptionFor returns the option whose value equals v.
func (c ColumnDef) OptionFor(v string) (Option, bool) {
	for _, o := range c.Options {
		if o.Value == v {
			return o, true
		}
	}
	return Option{}, false
}

// LabelFor resolves a raw value to its option label, falling back to the
// value itself.
func (c ColumnDef) LabelFor(v string) string {
	if o, ok := c.OptionFor(v); ok && o.Label != "" {
		return o.Label
	}
	return v
}

// Validate checks the fields the engine relies on.
func (c ColumnDef) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("column id is required")
	}
	if !c.Type.Valid() {
		return fmt.Errorf("column %q: unknown type %q", c.ID, c.Type)
	}
	return nil
}

// CustomColumnDef is a column stored in the schema registry for one state key.
type CustomColumnDef struct {
	ColID    string     `json:"col_id"`
	ColLabel string     `json:"col_label"`
	ColType  ColumnType `json:"col_type"`
	Options  []Option   `json:"options,omitempty"`
	ColWidth int        `json:"col_width,omitempty"`
	ColOrder int        `json:"col_order"`
}

// ColumnDef maps a registry record onto a column. Custom columns are always
// editable and sortable.
func (c CustomColumnDef) ColumnDef() ColumnDef {
	yes := true
	return ColumnDef{
		ID:       c.ColID,
		Label:    c.ColLabel,
		Type:     c.ColType,
		Options:  append([]Option(nil), c.Options...),
		Width:    c.ColWidth,
		Editable: &yes,
		Sortable: &yes,
	}
}

// NewColumn is the payload submitted to the registry when a column is added.
type NewColumn struct {
	ColID    string     `json:"col_id"`
	ColLabel string     `json:"col_label"`
	ColType  ColumnType `json:"col_type"`
}

func columnIndex(columns []ColumnDef, id string) int {
	for i, c := range columns {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// FindColumn returns the column with the given id.
func FindColumn(columns []ColumnDef, id string) (ColumnDef, bool) {
	if i := columnIndex(columns, id); i >= 0 {
		return columns[i], true
	}
	return ColumnDef{}, false
}

func columnIDs(columns []ColumnDef) []string {
	ids := make([]string, len(columns))
	for i, c := range columns {
		ids[i] = c.ID
	}
	return ids
}

package dbview

import (
	"math"
	"strings"
)

// Coerce converts raw editor input into the value stored for a column type.
// Numeric types keep the leading numeric prefix and default to 0.
func Coerce(t ColumnType, raw string) Value {
	switch t {
	case TypeNumber, TypeProgress:
		n, ok := ParseFloatPrefix(raw)
		if !ok || math.IsNaN(n) {
			return Number(0)
		}
		return Number(n)
	case TypeCheckbox:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "1", "yes", "y", "x", "on":
			return Bool(true)
		}
		return Bool(false)
	case TypeMultiSelect:
		return List(splitValueList(raw)...)
	}
	return String(raw)
}

// ClampProgress bounds a progress value to [0, 100] for display.
func ClampProgress(n float64) float64 {
	switch {
	case math.IsNaN(n), n < 0:
		return 0
	case n > 100:
		return 100
	}
	return n
}

// FormatValue renders a cell as plain text in read mode.
func FormatValue(col ColumnDef, v Value) string {
	switch col.Type {
	case TypeCheckbox:
		if v.Truthy() {
			return "[x]"
		}
		return "[ ]"
	case TypeProgress:
		if v.IsNull() || v.Stringify() == "" {
			return ""
		}
		n, _ := ParseFloatPrefix(v.Stringify())
		return formatNumber(math.Round(ClampProgress(n))) + "%"
	case TypeSelect, TypeBadge:
		return col.LabelFor(v.Stringify())
	case TypeMultiSelect, TypeRelation:
		items := v.Items()
		if v.Kind() != KindList {
			items = splitValueList(v.Stringify())
		}
		labels := make([]string, 0, len(items))
		for _, it := range items {
			labels = append(labels, col.LabelFor(it))
		}
		return strings.Join(labels, ", ")
	}
	return v.Stringify()
}

// freeText reports whether the type is edited through a text field that
// commits on blur or Enter.
func freeText(t ColumnType) bool {
	switch t {
	case TypeText, TypeDate, TypeURL, TypeEmail, TypePhone, TypeLink, TypeRelation, TypeNumber, TypeProgress:
		return true
	}
	return false
}

// CellEditor is the per-type inline edit widget shared by the table and the
// detail panel. Every commit calls OnSave with the coerced value; the save is
// not awaited and the displayed value is never rolled back.
type CellEditor struct {
	Column  ColumnDef
	value   Value
	draft   string
	editing bool
	onSave  func(Value)
}

func NewCellEditor(col ColumnDef, value Value, onSave func(Value)) *CellEditor {
	return &CellEditor{Column: col, value: value, onSave: onSave}
}

func (e *CellEditor) Value() Value { return e.value }
func (e *CellEditor) Editing() bool { return e.editing }
func (e *CellEditor) Draft() string { return e.draft }

// Display is the read-mode text of the cell.
func (e *CellEditor) Display() string { return FormatValue(e.Column, e.value) }

// SetValue refreshes the displayed value from the host. It is ignored while
// an edit is in progress.
func (e *CellEditor) SetValue(v Value) {
	if !e.editing {
		e.value = v
	}
}

// Begin enters edit mode. Read-only columns and checkboxes have none.
func (e *CellEditor) Begin() bool {
	if !e.Column.IsEditable() || e.Column.Type == TypeCheckbox || e.editing {
		return false
	}
	e.editing = true
	if e.Column.Type == TypeMultiSelect && e.value.Kind() == KindString {
		e.value = List(splitValueList(e.value.Str())...)
	}
	e.draft = e.value.Stringify()
	return true
}

// Input replaces the draft of a text or numeric edit.
func (e *CellEditor) Input(text string) {
	if e.editing && freeText(e.Column.Type) {
		e.draft = text
	}
}

// Commit saves the draft of a text or numeric edit and leaves edit mode.
// Option pickers just close, since their choices already committed.
func (e *CellEditor) Commit() {
	if !e.editing {
		return
	}
	e.editing = false
	if !freeText(e.Column.Type) {
		return
	}
	e.save(Coerce(e.Column.Type, e.draft))
}

// Cancel leaves edit mode without saving; the pre-edit value stays.
func (e *CellEditor) Cancel() {
	e.editing = false
	e.draft = ""
}

// Blur commits text edits, as losing focus does.
func (e *CellEditor) Blur() { e.Commit() }

// HandleKey applies Enter (commit) and Escape (cancel) while editing.
func (e *CellEditor) HandleKey(k Key) bool {
	if !e.editing {
		return false
	}
	switch k {
	case KeyEnter:
		if freeText(e.Column.Type) {
			e.Commit()
			return true
		}
	case KeyEscape:
		e.Cancel()
		return true
	}
	return false
}

// Toggle flips and commits a checkbox.
func (e *CellEditor) Toggle() bool {
	if e.Column.Type != TypeCheckbox || !e.Column.IsEditable() {
		return false
	}
	e.save(Bool(!e.value.Truthy()))
	return true
}

// Choose commits an option of a select or badge column and closes the
// dropdown.
func (e *CellEditor) Choose(value string) bool {
	if !e.editing || (e.Column.Type != TypeSelect && e.Column.Type != TypeBadge) {
		return false
	}
	e.editing = false
	e.save(String(value))
	return true
}

// ToggleOption adds or removes one option of a multi_select cell and commits
// the new list immediately. The chip picker stays open.
func (e *CellEditor) ToggleOption(value string) bool {
	if !e.editing || e.Column.Type != TypeMultiSelect {
		return false
	}
	items := e.value.Items()
	next := make([]string, 0, len(items)+1)
	removed := false
	for _, it := range items {
		if it == value {
			removed = true
			continue
		}
		next = append(next, it)
	}
	if !removed {
		next = append(next, value)
	}
	e.save(List(next...))
	return true
}

// Selected reports whether a multi_select option is currently chosen.
func (e *CellEditor) Selected(value string) bool {
	for _, it := range e.value.Items() {
		if it == value {
			return true
		}
	}
	return false
}

func (e *CellEditor) save(v Value) {
	e.value = v
	e.draft = ""
	if e.onSave != nil {
		e.onSave(v)
	}
}

package dbview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Row is one record. ID is the only key used for selection, grouping
// membership and detail addressing, so it must survive re-fetches.
type Row struct {
	ID     string
	Fields map[string]Value
}

// NewRow builds a row from plain Go values.
func NewRow(id string, fields map[string]any) Row {
	r := Row{ID: id, Fields: make(map[string]Value, len(fields))}
	for k, v := range fields {
		r.Fields[k] = FromAny(v)
	}
	return r
}

// Get returns the value of a field; missing fields are null. The id
// pseudo-field resolves to the row id.
func (r Row) Get(field string) Value {
	if v, ok := r.Fields[field]; ok {
		return v
	}
	if field == "id" {
		return String(r.ID)
	}
	return Null()
}

// With returns a copy of r with field set to v.
func (r Row) With(field string, v Value) Row {
	out := Row{ID: r.ID, Fields: make(map[string]Value, len(r.Fields)+1)}
	for k, fv := range r.Fields {
		out.Fields[k] = fv
	}
	out.Fields[field] = v
	return out
}

func (r Row) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		if k != "id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	id, _ := json.Marshal(r.ID)
	buf.WriteString(`"id":`)
	buf.Write(id)
	for _, k := range keys {
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(r.Fields[k])
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	idRaw, ok := raw["id"]
	if !ok {
		return fmt.Errorf("row is missing id")
	}
	var id Value
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return fmt.Errorf("row id: %w", err)
	}
	if id.IsNull() || id.Stringify() == "" {
		return fmt.Errorf("row id is empty")
	}
	out := Row{ID: id.Stringify(), Fields: make(map[string]Value, len(raw)-1)}
	for k, vr := range raw {
		if k == "id" {
			continue
		}
		var v Value
		if err := json.Unmarshal(vr, &v); err != nil {
			return fmt.Errorf("row %s field %s: %w", out.ID, k, err)
		}
		out.Fields[k] = v
	}
	*r = out
	return nil
}

// NormalizeRows converts comma-joined strings stored in multi_select columns
// into lists, which is the only in-memory representation the engine uses.
// The input slice is not modified.
func NormalizeRows(rows []Row, columns []ColumnDef) []Row {
	var multi []string
	for _, c := range columns {
		if c.Type == TypeMultiSelect {
			multi = append(multi, c.ID)
		}
	}
	if len(multi) == 0 {
		return rows
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r
		for _, field := range multi {
			v, ok := r.Fields[field]
			if !ok || v.Kind() != KindString {
				continue
			}
			out[i] = out[i].With(field, List(splitValueList(v.Str())...))
		}
	}
	return out
}

// splitValueList splits a comma separated cell and drops blank members.
func splitValueList(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ','
	})
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}

// RowIndex returns the position of the row with the given id.
func RowIndex(rows []Row, id string) int {
	for i, r := range rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

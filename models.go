package main

import (
	"errors"

	"github.com/paperless-link/dbview/dbview"
)

var (
	// ErrNotFound is returned when a state key or column has no live record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidColumn is returned for a column definition that fails validation.
	ErrInvalidColumn = errors.New("invalid column")
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CustomColumn is one registry record as stored and served.
type CustomColumn struct {
	ID        *int              `json:"id,omitempty"`
	StateKey  string            `json:"state_key"`
	ColID     string            `json:"col_id"`
	ColLabel  string            `json:"col_label"`
	ColType   dbview.ColumnType `json:"col_type"`
	Options   []dbview.Option   `json:"options,omitempty"`
	ColWidth  int               `json:"col_width"`
	ColOrder  int               `json:"col_order"`
	CreatedBy *string           `json:"created_by,omitempty"`
	Created   *string           `json:"created,omitempty"`
	Modified  *string           `json:"modified,omitempty"`
}

// Def strips the storage fields off a record.
func (c CustomColumn) Def() dbview.CustomColumnDef {
	return dbview.CustomColumnDef{
		ColID:    c.ColID,
		ColLabel: c.ColLabel,
		ColType:  c.ColType,
		Options:  c.Options,
		ColWidth: c.ColWidth,
		ColOrder: c.ColOrder,
	}
}

// CustomColumnListResponse represents the list of custom columns for a state key
type CustomColumnListResponse struct {
	Count   int            `json:"count"`
	Results []CustomColumn `json:"results"`
}

// CreateCustomColumnRequest is the POST body for a new custom column.
type CreateCustomColumnRequest struct {
	ColID    string            `json:"col_id"`
	ColLabel string            `json:"col_label"`
	ColType  dbview.ColumnType `json:"col_type"`
	Options  []dbview.Option   `json:"options,omitempty"`
	ColWidth int               `json:"col_width,omitempty"`
}

// ColumnValuesRequest is the body of a value count request. Filter rules and
// search narrow the rows before counting.
type ColumnValuesRequest struct {
	Rows        []dbview.Row        `json:"rows"`
	Column      *dbview.ColumnDef   `json:"column,omitempty"`
	FilterRules []dbview.FilterRule `json:"filter_rules,omitempty"`
	Search      string              `json:"search,omitempty"`
	SortBy      string              `json:"sort_by,omitempty"`
	SortOrder   string              `json:"sort_order,omitempty"`
	IgnoreCase  bool                `json:"ignore_case,omitempty"`
}

// ColumnValuesResponse represents the distinct values of a column
type ColumnValuesResponse struct {
	StateKey  string              `json:"state_key"`
	ColumnID  string              `json:"column_id"`
	Values    []dbview.ValueCount `json:"values"`
	TotalRows int                 `json:"total_rows"`
}

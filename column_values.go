package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/paperless-link/dbview/dbview"
)

// resolveColumn picks the definition used to label values: the one sent by
// the caller, else the registry record, else a bare text column.
func (s *Service) resolveColumn(ctx context.Context, stateKey, colID string, sent *dbview.ColumnDef) (dbview.ColumnDef, error) {
	if sent != nil {
		col := *sent
		col.ID = colID
		return col, nil
	}
	custom, err := s.GetCustomColumn(ctx, stateKey, colID)
	if err == nil {
		return custom.Def().ColumnDef(), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return dbview.ColumnDef{}, err
	}
	return dbview.ColumnDef{ID: colID, Label: colID, Type: dbview.TypeText}, nil
}

// GetColumnValues counts the distinct values of a column across the rows of a
// request, after its filter rules and search are applied
func (s *Service) GetColumnValues(ctx context.Context, stateKey, colID string, req ColumnValuesRequest) (*ColumnValuesResponse, error) {
	if colID == "" {
		return nil, fmt.Errorf("%w: column id is required", ErrInvalidColumn)
	}
	col, err := s.resolveColumn(ctx, stateKey, colID, req.Column)
	if err != nil {
		return nil, err
	}

	columns := []dbview.ColumnDef{col}
	rows := dbview.NormalizeRows(req.Rows, columns)
	rows = dbview.FilterRows(rows, req.FilterRules, req.Search, columns)

	return &ColumnValuesResponse{
		StateKey:  stateKey,
		ColumnID:  colID,
		Values:    dbview.CountValues(rows, col, req.SortBy, req.SortOrder, req.IgnoreCase),
		TotalRows: len(rows),
	}, nil
}

// searchValues keeps the values whose label contains query
func searchValues(values []dbview.ValueCount, query string, ignoreCase bool) []dbview.ValueCount {
	filtered := []dbview.ValueCount{}
	if ignoreCase {
		query = strings.ToLower(query)
	}
	for _, v := range values {
		label := v.Label
		if ignoreCase {
			label = strings.ToLower(label)
		}
		if strings.Contains(label, query) {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// HTTP Handlers for Column Values
func (s *Service) handleGetColumnValues(w http.ResponseWriter, r *http.Request) {
	stateKey := stateKeyVar(r)
	colID := mux.Vars(r)["colId"]

	var req ColumnValuesRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	// Query parameters override the body
	q := r.URL.Query()
	if v := q.Get("sort_by"); v != "" {
		req.SortBy = v
	}
	if v := q.Get("sort_order"); v != "" {
		req.SortOrder = v
	}
	if v := q.Get("ignore_case"); v != "" {
		req.IgnoreCase = v == "true" || v == "1"
	}

	response, err := s.GetColumnValues(r.Context(), stateKey, colID, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if query := q.Get("q"); query != "" {
		response.Values = searchValues(response.Values, query, req.IgnoreCase)
	}

	respondJSON(w, http.StatusOK, response)
}

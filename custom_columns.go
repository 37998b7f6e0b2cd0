package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/paperless-link/dbview/dbview"
	"go.uber.org/zap"
)

// ErrDuplicateColumn is returned when a live column already uses the requested id.
var ErrDuplicateColumn = errors.New("column already exists")

const customColumnFields = `id, state_key, col_id, col_label, col_type, options, col_width, col_order, created_by, created, modified`

// ListCustomColumns returns the live custom columns of a state key in display order
func (s *Service) ListCustomColumns(ctx context.Context, stateKey string) ([]CustomColumn, error) {
	query := s.bind(`
		SELECT ` + customColumnFields + `
		FROM custom_columns
		WHERE state_key = ? AND deleted_at IS NULL
		ORDER BY col_order, id
	`)

	rows, err := s.db.QueryContext(ctx, query, stateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom columns: %w", err)
	}
	defer rows.Close()

	columns := []CustomColumn{}
	for rows.Next() {
		col, err := s.scanCustomColumn(rows)
		if err != nil {
			s.logger.Named("columns").Warn("skipping unreadable column", zap.String("state_key", stateKey), zap.Error(err))
			continue
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read custom columns: %w", err)
	}
	return columns, nil
}

// GetCustomColumn retrieves one live column
func (s *Service) GetCustomColumn(ctx context.Context, stateKey, colID string) (*CustomColumn, error) {
	query := s.bind(`
		SELECT ` + customColumnFields + `
		FROM custom_columns
		WHERE state_key = ? AND col_id = ? AND deleted_at IS NULL
	`)

	col, err := s.scanCustomColumn(s.db.QueryRowContext(ctx, query, stateKey, colID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("column %q in %q: %w", colID, stateKey, ErrNotFound)
		}
		return nil, err
	}
	return &col, nil
}

// CreateCustomColumn validates and appends a column to a state key's schema
func (s *Service) CreateCustomColumn(ctx context.Context, stateKey string, req CreateCustomColumnRequest, createdBy string) (*CustomColumn, error) {
	log := s.logger.Named("columns")

	col := CustomColumn{
		StateKey: stateKey,
		ColID:    strings.TrimSpace(req.ColID),
		ColLabel: strings.TrimSpace(req.ColLabel),
		ColType:  req.ColType,
		Options:  req.Options,
		ColWidth: req.ColWidth,
	}
	if col.ColID == "" {
		col.ColID = dbview.NewColumnID()
	}
	if col.ColWidth <= 0 {
		col.ColWidth = dbview.DefaultColumnWidth
	}
	if stateKey == "" {
		return nil, fmt.Errorf("%w: state key is required", ErrInvalidColumn)
	}
	if col.ColLabel == "" {
		return nil, fmt.Errorf("%w: label is required", ErrInvalidColumn)
	}
	if err := col.Def().ColumnDef().Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidColumn, err)
	}

	if _, err := s.GetCustomColumn(ctx, stateKey, col.ColID); err == nil {
		return nil, fmt.Errorf("%q: %w", col.ColID, ErrDuplicateColumn)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var maxOrder sql.NullInt64
	orderQuery := s.bind("SELECT MAX(col_order) FROM custom_columns WHERE state_key = ? AND deleted_at IS NULL")
	if err := s.db.QueryRowContext(ctx, orderQuery, stateKey).Scan(&maxOrder); err != nil {
		return nil, fmt.Errorf("failed to read column order: %w", err)
	}
	col.ColOrder = int(maxOrder.Int64) + 1

	options := col.Options
	if options == nil {
		options = []dbview.Option{}
	}
	optionsJSON, _ := json.Marshal(options)
	col.CreatedBy = &createdBy

	args := []interface{}{
		col.StateKey, col.ColID, col.ColLabel, string(col.ColType), string(optionsJSON),
		col.ColWidth, col.ColOrder, createdBy,
	}

	var newID int
	var created, modified sql.NullString

	if dialect(s.config.DBEngine) == enginePostgres {
		insertQuery := s.bind(`
			INSERT INTO custom_columns (state_key, col_id, col_label, col_type, options, col_width, col_order, created_by)
			VALUES (?, ?, ?, ?, ?::jsonb, ?, ?, ?)
			RETURNING id, created, modified
		`)
		if err := s.db.QueryRowContext(ctx, insertQuery, args...).Scan(&newID, &created, &modified); err != nil {
			return nil, fmt.Errorf("failed to create custom column: %w", err)
		}
	} else {
		insertQuery := `
			INSERT INTO custom_columns (state_key, col_id, col_label, col_type, options, col_width, col_order, created_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		result, err := s.db.ExecContext(ctx, insertQuery, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to create custom column: %w", err)
		}
		lastID, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get last insert ID: %w", err)
		}
		newID = int(lastID)

		s.db.QueryRowContext(ctx, "SELECT created, modified FROM custom_columns WHERE id = ?", newID).Scan(&created, &modified)
	}

	col.ID = &newID
	if created.Valid {
		col.Created = &created.String
	}
	if modified.Valid {
		col.Modified = &modified.String
	}

	log.Info("custom column created",
		zap.String("state_key", stateKey),
		zap.String("col_id", col.ColID),
		zap.String("col_type", string(col.ColType)),
	)
	return &col, nil
}

// DeleteCustomColumn soft-deletes a column
func (s *Service) DeleteCustomColumn(ctx context.Context, stateKey, colID string) error {
	deleteQuery := s.bind("UPDATE custom_columns SET deleted_at = CURRENT_TIMESTAMP WHERE state_key = ? AND col_id = ? AND deleted_at IS NULL")

	result, err := s.db.ExecContext(ctx, deleteQuery, stateKey, colID)
	if err != nil {
		return fmt.Errorf("failed to delete custom column: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("column %q in %q: %w", colID, stateKey, ErrNotFound)
	}

	s.logger.Named("columns").Info("custom column deleted", zap.String("state_key", stateKey), zap.String("col_id", colID))
	return nil
}

// scanCustomColumn scans a CustomColumn from a database row or rows
func (s *Service) scanCustomColumn(scanner interface{}) (CustomColumn, error) {
	var col CustomColumn
	var id sql.NullInt64
	var colType string
	var optionsJSON, createdBy, created, modified sql.NullString

	dest := []interface{}{
		&id, &col.StateKey, &col.ColID, &col.ColLabel, &colType, &optionsJSON,
		&col.ColWidth, &col.ColOrder, &createdBy, &created, &modified,
	}

	var scanErr error
	switch sc := scanner.(type) {
	case *sql.Row:
		scanErr = sc.Scan(dest...)
	case *sql.Rows:
		scanErr = sc.Scan(dest...)
	default:
		return col, fmt.Errorf("unsupported scanner type %T", scanner)
	}
	if scanErr != nil {
		return col, scanErr
	}

	col.ColType = dbview.ColumnType(colType)
	if id.Valid {
		idInt := int(id.Int64)
		col.ID = &idInt
	}
	if createdBy.Valid {
		col.CreatedBy = &createdBy.String
	}
	if created.Valid {
		col.Created = &created.String
	}
	if modified.Valid {
		col.Modified = &modified.String
	}
	if optionsJSON.Valid && optionsJSON.String != "" {
		if err := json.Unmarshal([]byte(optionsJSON.String), &col.Options); err != nil {
			return col, fmt.Errorf("column %q options: %w", col.ColID, err)
		}
	}
	return col, nil
}

// HTTP Handlers for Custom Columns
func (s *Service) handleListCustomColumns(w http.ResponseWriter, r *http.Request) {
	stateKey := stateKeyVar(r)
	if stateKey == "" {
		respondError(w, http.StatusBadRequest, "State key is required")
		return
	}

	columns, err := s.ListCustomColumns(r.Context(), stateKey)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CustomColumnListResponse{
		Count:   len(columns),
		Results: columns,
	})
}

func (s *Service) handleCreateCustomColumn(w http.ResponseWriter, r *http.Request) {
	stateKey := stateKeyVar(r)

	var req CreateCustomColumnRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	created, err := s.CreateCustomColumn(r.Context(), stateKey, req, *getUsernameFromRequest(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

func (s *Service) handleDeleteCustomColumn(w http.ResponseWriter, r *http.Request) {
	stateKey := stateKeyVar(r)
	colID := mux.Vars(r)["colId"]

	if err := s.DeleteCustomColumn(r.Context(), stateKey, colID); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

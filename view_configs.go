package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// ErrInvalidConfig is returned when a stored view config is not a JSON document.
var ErrInvalidConfig = errors.New("view config must be valid JSON")

// GetViewConfig returns the raw config blob stored under key
func (s *Service) GetViewConfig(ctx context.Context, key string) (string, error) {
	var config string
	err := s.db.QueryRowContext(ctx, s.bind("SELECT config FROM view_configs WHERE state_key = ?"), key).Scan(&config)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("view config %q: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("failed to read view config: %w", err)
	}
	return config, nil
}

// PutViewConfig inserts or replaces the config blob stored under key
func (s *Service) PutViewConfig(ctx context.Context, key, config string) error {
	if key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidConfig)
	}
	if !json.Valid([]byte(config)) {
		return ErrInvalidConfig
	}

	var upsertQuery string
	switch dialect(s.config.DBEngine) {
	case enginePostgres:
		upsertQuery = `
			INSERT INTO view_configs (state_key, config, modified)
			VALUES ($1, $2, CURRENT_TIMESTAMP)
			ON CONFLICT (state_key) DO UPDATE SET config = EXCLUDED.config, modified = CURRENT_TIMESTAMP
		`
	case engineMySQL:
		upsertQuery = `
			INSERT INTO view_configs (state_key, config, modified)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON DUPLICATE KEY UPDATE config = VALUES(config), modified = CURRENT_TIMESTAMP
		`
	case engineSQLite:
		upsertQuery = `
			INSERT INTO view_configs (state_key, config, modified)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (state_key) DO UPDATE SET config = excluded.config, modified = CURRENT_TIMESTAMP
		`
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEngine, s.config.DBEngine)
	}

	if _, err := s.db.ExecContext(ctx, upsertQuery, key, config); err != nil {
		return fmt.Errorf("failed to save view config: %w", err)
	}
	s.logger.Named("views").Debug("view config saved", zap.String("key", key), zap.Int("bytes", len(config)))
	return nil
}

// DeleteViewConfig removes the config stored under key
func (s *Service) DeleteViewConfig(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, s.bind("DELETE FROM view_configs WHERE state_key = ?"), key)
	if err != nil {
		return fmt.Errorf("failed to delete view config: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("view config %q: %w", key, ErrNotFound)
	}
	return nil
}

// HTTP Handlers for View Configs
func (s *Service) handleGetViewConfig(w http.ResponseWriter, r *http.Request) {
	config, err := s.GetViewConfig(r.Context(), stateKeyVar(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, config)
}

func (s *Service) handlePutViewConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if err := s.PutViewConfig(r.Context(), stateKeyVar(r), string(body)); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDeleteViewConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.DeleteViewConfig(r.Context(), stateKeyVar(r)); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

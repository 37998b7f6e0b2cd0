package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/paperless-link/dbview/dbview"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// browseOptions are the flags of the browse command.
type browseOptions struct {
	rowsPath    string
	columnsPath string
	stateKey    string
	registryURL string
	view        string
	local       bool
}

// schemaFile is the YAML layout of --columns.
type schemaFile struct {
	StateKey string             `yaml:"state_key"`
	Columns  []dbview.ColumnDef `yaml:"columns"`
}

func loadSchema(path string) (schemaFile, error) {
	var schema schemaFile
	data, err := os.ReadFile(path)
	if err != nil {
		return schema, fmt.Errorf("read columns: %w", err)
	}
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return schema, fmt.Errorf("parse columns %s: %w", path, err)
	}
	for _, c := range schema.Columns {
		if err := c.Validate(); err != nil {
			return schema, fmt.Errorf("columns %s: %w", path, err)
		}
	}
	return schema, nil
}

// rowsFile is the JSON array of rows browse edits in place.
type rowsFile struct {
	mu   sync.Mutex
	path string
	rows []dbview.Row
}

func openRowsFile(path string) (*rowsFile, error) {
	f := &rowsFile{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if err := json.Unmarshal(data, &f.rows); err != nil {
		return nil, fmt.Errorf("parse rows %s: %w", path, err)
	}
	return f, nil
}

func (f *rowsFile) Rows() []dbview.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dbview.Row(nil), f.rows...)
}

func (f *rowsFile) saveLocked() error {
	data, err := json.MarshalIndent(f.rows, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *rowsFile) Update(rowID, colID string, v dbview.Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := dbview.RowIndex(f.rows, rowID)
	if i < 0 {
		return fmt.Errorf("row %q not found", rowID)
	}
	f.rows[i] = f.rows[i].With(colID, v)
	return f.saveLocked()
}

func (f *rowsFile) Create(partial dbview.Row) (dbview.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if partial.ID == "" {
		partial.ID = uuid.NewString()
	}
	if partial.Fields == nil {
		partial.Fields = map[string]dbview.Value{}
	}
	f.rows = append(f.rows, partial)
	return partial, f.saveLocked()
}

func (f *rowsFile) Delete(rowID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := dbview.RowIndex(f.rows, rowID)
	if i < 0 {
		return fmt.Errorf("row %q not found", rowID)
	}
	f.rows = append(f.rows[:i], f.rows[i+1:]...)
	return f.saveLocked()
}

// rowStats counts rows by their status column, when the schema has one.
func rowStats(rows []dbview.Row, columns []dbview.ColumnDef) *dbview.Stats {
	stats := &dbview.Stats{Total: len(rows)}
	if _, ok := dbview.FindColumn(columns, "status"); !ok {
		return stats
	}
	stats.ByStatus = map[string]int{}
	for _, r := range rows {
		if s := r.Get("status").Stringify(); s != "" {
			stats.ByStatus[s]++
		}
	}
	return stats
}

// browseBackends picks where the view keeps its config and custom columns:
// a remote service, the local database, or a state file with no registry.
func browseBackends(config *Config, opts browseOptions, logger *zap.Logger) (dbview.Storage, dbview.Registry, func(), error) {
	switch {
	case opts.registryURL != "":
		return dbview.NewHTTPStorage(opts.registryURL), dbview.NewHTTPRegistry(opts.registryURL), func() {}, nil
	case opts.local:
		service, err := NewService(config, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		username := getEnv("USER", "admin")
		return service.Storage(), service.Registry(username), func() { service.Close() }, nil
	}
	return dbview.NewFileStorage(defaultStatePath()), nil, func() {}, nil
}

func runBrowse(cmd *cobra.Command, opts browseOptions) error {
	config := loadConfig()
	if opts.registryURL == "" {
		opts.registryURL = config.RegistryURL
	}
	// The terminal belongs to the UI; logs only go out at warn and above.
	if config.LogLevel == "info" || config.LogLevel == "debug" {
		config.LogLevel = "warn"
	}
	logger, err := newLogger(config)
	if err != nil {
		return err
	}
	defer logger.Sync()

	schema, err := loadSchema(opts.columnsPath)
	if err != nil {
		return err
	}
	stateKey := opts.stateKey
	if stateKey == "" {
		stateKey = schema.StateKey
	}

	rows, err := openRowsFile(opts.rowsPath)
	if err != nil {
		return err
	}

	storage, registry, closeBackends, err := browseBackends(config, opts, logger)
	if err != nil {
		return err
	}
	defer closeBackends()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	host := &browseHost{rows: rows, logger: logger.Named("browse")}
	view := dbview.NewView(ctx, schema.Columns, dbview.Options{
		StateKey:  stateKey,
		Storage:   storage,
		Registry:  registry,
		Callbacks: host.callbacks(),
		Logger:    logger.Named("view"),
	})
	defer view.Close()
	host.view = view
	host.refresh()

	if opts.view != "" {
		mode := dbview.ViewMode(opts.view)
		if !mode.Valid() {
			return fmt.Errorf("unknown view %q", opts.view)
		}
		view.Store().SetView(mode)
	}

	model := newBrowseModel(ctx, view)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	// navigate fires inside Update; a blocking Send there would stall the loop
	host.notify = func(msg tea.Msg) { go program.Send(msg) }

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("browse: %w", err)
	}
	return nil
}

// browseHost owns the rows behind a browse session and answers the view's
// callbacks.
type browseHost struct {
	rows   *rowsFile
	view   *dbview.View
	logger *zap.Logger
	notify func(tea.Msg)
}

// hostMsg reports the outcome of a callback back to the UI. apply runs on
// the program goroutine, which owns the view's editors.
type hostMsg struct {
	status string
	err    error
	apply  func()
}

// send hands msg to the program. Without one it applies inline.
func (h *browseHost) send(msg hostMsg) {
	if msg.err != nil {
		h.logger.Warn(msg.status, zap.Error(msg.err))
	}
	if h.notify == nil {
		if msg.apply != nil {
			msg.apply()
		}
		return
	}
	h.notify(msg)
}

func (h *browseHost) refresh() {
	rows := h.rows.Rows()
	h.view.SetRows(rows)
	h.view.SetStats(rowStats(rows, h.view.Columns()))
}

func (h *browseHost) refreshStats() {
	h.view.SetStats(rowStats(h.rows.Rows(), h.view.Columns()))
}

// callbacks write through to the rows file on the dispatcher goroutine and
// leave every view change to the program.
func (h *browseHost) callbacks() dbview.Callbacks {
	return dbview.Callbacks{
		OnUpdate: func(_ context.Context, rowID, columnID string, value dbview.Value) error {
			err := h.rows.Update(rowID, columnID, value)
			msg := hostMsg{status: fmt.Sprintf("saved %s.%s", rowID, columnID), err: err}
			if err == nil {
				msg.apply = h.refreshStats
			}
			h.send(msg)
			return err
		},
		OnCreate: func(_ context.Context, partial dbview.Row) error {
			row, err := h.rows.Create(partial)
			msg := hostMsg{status: "created " + row.ID, err: err}
			if err == nil {
				msg.apply = h.refresh
			}
			h.send(msg)
			return err
		},
		OnDelete: func(_ context.Context, rowID string) error {
			err := h.rows.Delete(rowID)
			msg := hostMsg{status: "deleted " + rowID, err: err}
			if err == nil {
				msg.apply = h.refresh
			}
			h.send(msg)
			return err
		},
		OnRowNavigate: func(rowID string) {
			h.send(hostMsg{status: "open " + rowID})
		},
	}
}

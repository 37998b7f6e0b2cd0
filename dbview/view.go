package dbview

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ColumnIDPrefix prefixes generated custom column ids.
const ColumnIDPrefix = "col_"

var ErrNoRegistry = errors.New("dbview: no schema registry configured")

// NewColumnID returns a fresh custom column id. Uniqueness is
// probabilistic.
func NewColumnID() string {
	return ColumnIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Options configures a View. Every field is optional.
type Options struct {
	StateKey   string
	Storage    Storage
	Registry   Registry
	Callbacks  Callbacks
	Dispatcher Dispatcher
	Hub        *PointerHub
	Logger     *zap.Logger
}

// View wires the schema resolver, state store, pipeline and renderers for
// one grid. The host owns the rows and pushes them in with SetRows.
type View struct {
	mu        sync.RWMutex
	rows      []Row
	stats     *Stats
	detail    *DetailPanel
	registry  Registry
	resolver  *SchemaResolver
	store     *StateStore
	renderers *RendererSet
	controls  *ColumnControls
	hub       *PointerHub
	calls     *caller
	logger    *zap.Logger
	unsub     []func()
}

// NewView resolves the schema for opts.StateKey, loads the saved view
// configuration and builds the renderers. ctx is used for schema fetches
// and is handed to every host callback.
func NewView(ctx context.Context, static []ColumnDef, opts Options) *View {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = GoDispatcher{}
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewPointerHub()
	}

	v := &View{
		registry: opts.Registry,
		hub:      hub,
		logger:   logger,
		calls:    &caller{cb: opts.Callbacks, dispatcher: dispatcher, logger: logger.Named("callbacks"), ctx: ctx},
	}
	v.resolver = NewSchemaResolver(static, opts.StateKey, opts.Registry, logger)
	v.resolver.Refresh(ctx)
	v.store = NewStateStore(opts.StateKey, opts.Storage, v.resolver.Columns(), logger)
	v.renderers = NewRendererSet(hub, v.store)
	v.controls = newColumnControls(hub, v.store, v.AddCustomColumn)

	v.unsub = append(v.unsub, v.resolver.Subscribe(func(cols []ColumnDef) {
		if key := v.resolver.StateKey(); key != v.store.Snapshot().StateKey {
			v.store.SetStateKey(key, cols)
		} else {
			v.store.SetColumns(cols)
		}
		v.mu.Lock()
		v.rows = NormalizeRows(v.rows, cols)
		v.mu.Unlock()
	}))
	v.unsub = append(v.unsub, v.store.Subscribe(func(s Snapshot) {
		v.mu.Lock()
		if v.detail != nil && v.detail.RowID() != s.DetailRowID {
			v.detail = nil
		}
		v.mu.Unlock()
	}))
	return v
}

// SetStateKey points the view at another namespace. The custom columns for
// key are fetched first, then the store is rebound and its saved
// configuration loaded, so a saved order that names custom columns survives.
func (v *View) SetStateKey(ctx context.Context, key string) {
	v.resolver.SetStateKey(ctx, key)
}

// Close drops the view's subscriptions.
func (v *View) Close() {
	for _, fn := range v.unsub {
		fn()
	}
	v.unsub = nil
}

func (v *View) Store() *StateStore { return v.store }
func (v *View) Resolver() *SchemaResolver { return v.resolver }
func (v *View) Renderers() *RendererSet { return v.renderers }
func (v *View) Controls() *ColumnControls { return v.controls }
func (v *View) Hub() *PointerHub { return v.hub }
func (v *View) Columns() []ColumnDef { return v.store.Snapshot().Columns }
func (v *View) Snapshot() Snapshot { return v.store.Snapshot() }

// SetRows replaces the host data. Multi-select values are normalized to
// lists.
func (v *View) SetRows(rows []Row) {
	cols := v.store.Snapshot().Columns
	v.mu.Lock()
	v.rows = NormalizeRows(rows, cols)
	v.mu.Unlock()
	v.refreshDetail()
}

// Rows returns the host data as last set or edited.
func (v *View) Rows() []Row {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Row(nil), v.rows...)
}

func (v *View) Row(id string) (Row, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if i := RowIndex(v.rows, id); i >= 0 {
		return v.rows[i], true
	}
	return Row{}, false
}

func (v *View) SetStats(s *Stats) {
	v.mu.Lock()
	v.stats = s
	v.mu.Unlock()
}

// Frame runs the pipeline and grouping over the current rows and state.
func (v *View) Frame(width int, cursor Cursor) Frame {
	snap := v.store.Snapshot()
	v.mu.RLock()
	rows, stats := v.rows, v.stats
	v.mu.RUnlock()

	out := RunPipeline(rows, snap.Query(), snap.Columns)
	f := Frame{
		Rows:       out,
		Columns:    snap.VisibleColumns(),
		AllColumns: snap.Columns,
		GroupField: snap.GroupField,
		Sort:       snap.Sort,
		Width:      width,
		Cursor:     cursor,
		Stats:      stats,
	}
	if snap.GroupField != "" {
		f.Groups = GroupRows(out, snap.GroupField, snap.Columns)
	}
	return f
}

// Renderer returns the renderer of the active view mode.
func (v *View) Renderer() Renderer {
	return v.renderers.For(v.store.Snapshot().View)
}

// Render draws the active view, preceded by the stats line when the host
// supplied stats and the view is not fullscreen.
func (v *View) Render(width int, cursor Cursor) string {
	snap := v.store.Snapshot()
	f := v.Frame(width, cursor)
	body := v.renderers.For(snap.View).Render(f)
	if f.Stats == nil || snap.Fullscreen {
		return body
	}
	return dimStyle.Render(statsLine(*f.Stats, len(f.Rows))) + "\n" + body
}

func statsLine(s Stats, shown int) string {
	line := fmt.Sprintf("%d of %d", shown, s.Total)
	keys := make([]string, 0, len(s.ByStatus))
	for k := range s.ByStatus {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line += fmt.Sprintf(" · %s %d", k, s.ByStatus[k])
	}
	return line
}

// UpdateCell applies an edit locally and hands it to the host.
func (v *View) UpdateCell(rowID, colID string, value Value) {
	v.mu.Lock()
	if i := RowIndex(v.rows, rowID); i >= 0 {
		v.rows[i] = v.rows[i].With(colID, value)
	}
	v.mu.Unlock()
	v.calls.update(rowID, colID, value)
}

// CreateRow hands a partial row to the host. The host adds it to the data
// it pushes back.
func (v *View) CreateRow(partial Row) {
	v.calls.create(partial)
}

// DeleteRow hands the delete to the host and closes its detail panel.
func (v *View) DeleteRow(rowID string) {
	v.calls.delete(rowID)
	if v.store.Snapshot().DetailRowID == rowID {
		v.store.CloseDetail()
	}
}

func (v *View) Navigate(rowID string) { v.calls.navigate(rowID) }

// MoveCard drops a board card into the lane with the given key, updating
// the board's group column.
func (v *View) MoveCard(rowID, laneKey string) bool {
	f := v.Frame(0, Cursor{})
	col, ok := v.renderers.Board.GroupColumn(f)
	if !ok || !col.IsEditable() {
		return false
	}
	v.UpdateCell(rowID, col.ID, String(laneKey))
	return true
}

// OpenDetail shows the detail panel for a row.
func (v *View) OpenDetail(rowID string) *DetailPanel {
	row, ok := v.Row(rowID)
	if !ok {
		return nil
	}
	v.store.OpenDetail(rowID)
	p := newDetailPanel(row, v.store.OrderedColumns(), v.store, v.calls, func(colID string, val Value) {
		v.UpdateCell(rowID, colID, val)
	})
	v.mu.Lock()
	v.detail = p
	v.mu.Unlock()
	return p
}

// Detail returns the open detail panel, or nil.
func (v *View) Detail() *DetailPanel {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.detail
}

func (v *View) refreshDetail() {
	p := v.Detail()
	if p == nil {
		return
	}
	if row, ok := v.Row(p.RowID()); ok {
		p.Refresh(row)
	}
}

// AddCustomColumn registers a new column for the state key and refreshes
// the schema. The new id is appended to the column order by the store.
func (v *View) AddCustomColumn(ctx context.Context, label string, t ColumnType) (string, error) {
	if v.registry == nil {
		return "", ErrNoRegistry
	}
	key := v.resolver.StateKey()
	if key == "" {
		return "", fmt.Errorf("add column: state key is required")
	}
	if !t.Valid() {
		return "", fmt.Errorf("add column: unknown type %q", t)
	}
	id := NewColumnID()
	if err := v.registry.Create(ctx, key, NewColumn{ColID: id, ColLabel: label, ColType: t}); err != nil {
		return "", fmt.Errorf("add column: %w", err)
	}
	v.resolver.Refresh(ctx)
	return id, nil
}

// ValueCounts counts the distinct values of a column over all rows, for
// filter suggestions.
func (v *View) ValueCounts(colID string) []ValueCount {
	col, ok := FindColumn(v.store.Snapshot().Columns, colID)
	if !ok {
		return nil
	}
	return CountValues(v.Rows(), col, "count", "desc", true)
}

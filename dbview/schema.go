package dbview

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry is the per-state-key store of custom column definitions.
type Registry interface {
	List(ctx context.Context, stateKey string) ([]CustomColumnDef, error)
	Create(ctx context.Context, stateKey string, col NewColumn) error
}

// MergeColumns returns the static columns that are not overridden by a custom
// column, followed by the custom columns in registry order.
func MergeColumns(static []ColumnDef, custom []ColumnDef) []ColumnDef {
	overridden := make(map[string]bool, len(custom))
	for _, c := range custom {
		overridden[c.ID] = true
	}
	merged := make([]ColumnDef, 0, len(static)+len(custom))
	for _, c := range static {
		if !overridden[c.ID] {
			merged = append(merged, c)
		}
	}
	seen := make(map[string]bool, len(custom))
	for _, c := range custom {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		merged = append(merged, c)
	}
	return merged
}

// SchemaResolver merges the host's static columns with the custom columns
// fetched for the current state key. Fetch failures leave the custom set
// empty and are never returned.
type SchemaResolver struct {
	mu       sync.RWMutex
	static   []ColumnDef
	custom   []ColumnDef
	stateKey string
	registry Registry
	logger   *zap.Logger

	subsMu sync.Mutex
	subs   map[int]func([]ColumnDef)
	nextID int
}

// NewSchemaResolver creates a resolver. Registry may be nil, in which case
// only static columns are ever resolved.
func NewSchemaResolver(static []ColumnDef, stateKey string, registry Registry, logger *zap.Logger) *SchemaResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaResolver{
		static:   append([]ColumnDef(nil), static...),
		stateKey: stateKey,
		registry: registry,
		logger:   logger.Named("schema"),
		subs:     make(map[int]func([]ColumnDef)),
	}
}

// Columns returns the merged column list.
func (r *SchemaResolver) Columns() []ColumnDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return MergeColumns(r.static, r.custom)
}

func (r *SchemaResolver) StateKey() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stateKey
}

// Refresh re-fetches the custom columns for the current state key and
// notifies subscribers with the new merged schema.
func (r *SchemaResolver) Refresh(ctx context.Context) {
	r.mu.RLock()
	key := r.stateKey
	r.mu.RUnlock()

	custom := r.fetch(ctx, key)

	r.mu.Lock()
	if r.stateKey != key {
		// a newer SetStateKey won; its own fetch will publish
		r.mu.Unlock()
		return
	}
	r.custom = custom
	merged := MergeColumns(r.static, r.custom)
	r.mu.Unlock()

	r.publish(merged)
}

// SetStateKey switches the namespace and re-fetches.
func (r *SchemaResolver) SetStateKey(ctx context.Context, key string) {
	r.mu.Lock()
	r.stateKey = key
	r.custom = nil
	r.mu.Unlock()
	r.Refresh(ctx)
}

func (r *SchemaResolver) fetch(ctx context.Context, key string) []ColumnDef {
	if r.registry == nil || key == "" {
		return nil
	}
	defs, err := r.registry.List(ctx, key)
	if err != nil {
		r.logger.Debug("custom column fetch failed", zap.String("state_key", key), zap.Error(err))
		return nil
	}
	cols := make([]ColumnDef, 0, len(defs))
	for _, d := range defs {
		col := d.ColumnDef()
		if err := col.Validate(); err != nil {
			r.logger.Debug("skipping invalid custom column", zap.String("state_key", key), zap.Error(err))
			continue
		}
		cols = append(cols, col)
	}
	return cols
}

// Subscribe registers fn to receive the merged schema after every refresh.
func (r *SchemaResolver) Subscribe(fn func([]ColumnDef)) (unsubscribe func()) {
	r.subsMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.subsMu.Unlock()
	return func() {
		r.subsMu.Lock()
		delete(r.subs, id)
		r.subsMu.Unlock()
	}
}

func (r *SchemaResolver) publish(cols []ColumnDef) {
	r.subsMu.Lock()
	ids := make([]int, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func([]ColumnDef), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.subs[id])
	}
	r.subsMu.Unlock()

	for _, fn := range fns {
		fn(append([]ColumnDef(nil), cols...))
	}
}

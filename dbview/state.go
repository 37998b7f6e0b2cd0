package dbview

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Key is a keyboard input the store reacts to.
type Key string

const (
	KeyEscape Key = "esc"
	KeyEnter  Key = "enter"
)

// Snapshot is an immutable copy of the view state.
type Snapshot struct {
	StateKey    string
	View        ViewMode
	HiddenCols  []string
	ColOrder    []string
	Sort        SortState
	Filters     []FilterRule
	Search      string
	DetailRowID string
	Fullscreen  bool
	GroupField  string
	Columns     []ColumnDef
}

// Hidden reports whether the column id is in the hidden set.
func (s Snapshot) Hidden(id string) bool {
	for _, h := range s.HiddenCols {
		if h == id {
			return true
		}
	}
	return false
}

// Config returns the persisted subset of the snapshot.
func (s Snapshot) Config() ViewConfig {
	return ViewConfig{
		View:       s.View,
		HiddenCols: append([]string{}, s.HiddenCols...),
		ColOrder:   append([]string{}, s.ColOrder...),
		SortField:  s.Sort.Field,
		SortDir:    s.Sort.Direction,
	}
}

// StateStore holds the transient UI state of one view and persists
// {view, hiddenCols, colOrder, sort} after every change to them.
type StateStore struct {
	mu       sync.Mutex
	stateKey string
	storage  Storage
	logger   *zap.Logger
	newID    func() string

	columns     []ColumnDef
	view        ViewMode
	hidden      []string
	colOrder    []string
	sort        SortState
	filters     []FilterRule
	search      string
	detailRowID string
	fullscreen  bool
	groupField  string

	subsMu sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// NewStateStore builds a store for the given columns and loads the saved
// configuration for stateKey, if any. A nil storage disables persistence.
func NewStateStore(stateKey string, storage Storage, columns []ColumnDef, logger *zap.Logger) *StateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StateStore{
		stateKey: stateKey,
		storage:  storage,
		logger:   logger.Named("state"),
		newID:    uuid.NewString,
		columns:  append([]ColumnDef(nil), columns...),
		subs:     make(map[int]func(Snapshot)),
	}

	s.loadLocked()
	return s
}

// loadLocked replaces the persisted subset with the saved configuration for
// the current key, or with the schema defaults when there is none.
func (s *StateStore) loadLocked() {
	s.view = ViewTable
	s.hidden = nil
	s.colOrder = nil
	s.sort = SortState{Direction: SortAsc}

	cfg, ok := LoadViewConfig(s.storage, s.stateKey, columnIDs(s.columns))
	if ok {
		if cfg.View != "" {
			s.view = cfg.View
		}
		s.hidden = dedupe(cfg.HiddenCols)
		s.colOrder = cfg.ColOrder
		s.sort = SortState{Field: cfg.SortField, Direction: cfg.SortDir}
	} else {
		for _, c := range s.columns {
			if c.Hidden {
				s.hidden = append(s.hidden, c.ID)
			}
		}
	}
	s.colOrder, _ = reconcileOrder(s.colOrder, s.columns)
}

// SetStateKey rebinds the store to another key with that key's columns.
// The saved configuration for the new key is loaded and session state
// (filters, search, detail, fullscreen, grouping) starts over.
func (s *StateStore) SetStateKey(key string, columns []ColumnDef) {
	s.mu.Lock()
	s.stateKey = key
	s.columns = append([]ColumnDef(nil), columns...)
	s.filters = nil
	s.search = ""
	s.detailRowID = ""
	s.fullscreen = false
	s.groupField = ""
	s.loadLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// reconcileOrder drops ids that are no longer known and appends new ids in
// schema order, keeping the relative order of existing entries.
func reconcileOrder(order []string, columns []ColumnDef) ([]string, bool) {
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c.ID] = true
	}
	out := make([]string, 0, len(columns))
	seen := make(map[string]bool, len(columns))
	for _, id := range order {
		if known[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, c := range columns {
		if !seen[c.ID] {
			seen[c.ID] = true
			out = append(out, c.ID)
		}
	}
	return out, !equalStrings(out, order)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Subscribe registers fn to run synchronously after every mutation.
func (s *StateStore) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()
	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *StateStore) notify(snap Snapshot) {
	s.subsMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subsMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// mutate runs fn under the lock. When fn reports a change the persisted
// subset is written (if persist) and subscribers are notified.
func (s *StateStore) mutate(persist bool, fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	if persist {
		s.persistLocked()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *StateStore) persistLocked() {
	if s.storage == nil || s.stateKey == "" {
		return
	}
	cfg := ViewConfig{
		View:       s.view,
		HiddenCols: append([]string{}, s.hidden...),
		ColOrder:   append([]string{}, s.colOrder...),
		SortField:  s.sort.Field,
		SortDir:    s.sort.Direction,
	}
	if err := SaveViewConfig(s.storage, s.stateKey, cfg); err != nil {
		s.logger.Debug("view config not persisted", zap.String("state_key", s.stateKey), zap.Error(err))
	}
}

func (s *StateStore) snapshotLocked() Snapshot {
	return Snapshot{
		StateKey:    s.stateKey,
		View:        s.view,
		HiddenCols:  append([]string{}, s.hidden...),
		ColOrder:    append([]string{}, s.colOrder...),
		Sort:        s.sort,
		Filters:     append([]FilterRule{}, s.filters...),
		Search:      s.search,
		DetailRowID: s.detailRowID,
		Fullscreen:  s.fullscreen,
		GroupField:  s.groupField,
		Columns:     append([]ColumnDef(nil), s.columns...),
	}
}

// Snapshot returns the current state.
func (s *StateStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SetColumns replaces the known schema. Ids that disappeared are pruned
// from colOrder and new ids are appended in schema order.
func (s *StateStore) SetColumns(columns []ColumnDef) {
	s.mu.Lock()
	s.columns = append([]ColumnDef(nil), columns...)
	order, changed := reconcileOrder(s.colOrder, s.columns)
	s.colOrder = order
	if changed {
		s.persistLocked()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *StateStore) SetView(mode ViewMode) {
	if !mode.Valid() {
		return
	}
	s.mutate(true, func() bool {
		if s.view == mode {
			return false
		}
		s.view = mode
		return true
	})
}

// ToggleHidden flips the visibility of a known column.
func (s *StateStore) ToggleHidden(id string) {
	s.mutate(true, func() bool {
		if columnIndex(s.columns, id) < 0 {
			return false
		}
		for i, h := range s.hidden {
			if h == id {
				s.hidden = append(append([]string{}, s.hidden[:i]...), s.hidden[i+1:]...)
				return true
			}
		}
		s.hidden = append(append([]string{}, s.hidden...), id)
		return true
	})
}

// ShowAll clears the hidden set.
func (s *StateStore) ShowAll() {
	s.mutate(true, func() bool {
		if len(s.hidden) == 0 {
			return false
		}
		s.hidden = nil
		return true
	})
}

// orderedIDsLocked ranks every known column by its index in colOrder; ids
// missing from colOrder follow in schema order.
func (s *StateStore) orderedIDsLocked() []string {
	return orderIDs(s.colOrder, s.columns)
}

func orderIDs(order []string, columns []ColumnDef) []string {
	rank := make(map[string]int, len(order))
	for i, id := range order {
		if _, ok := rank[id]; !ok {
			rank[id] = i
		}
	}
	ids := columnIDs(columns)
	sort.SliceStable(ids, func(i, j int) bool {
		ri, okI := rank[ids[i]]
		rj, okJ := rank[ids[j]]
		switch {
		case okI && okJ:
			return ri < rj
		case okI:
			return true
		}
		return false
	})
	return ids
}

// MoveColumn moves fromID immediately before beforeID. An empty beforeID
// moves the column to the end. Unknown ids leave the order untouched.
func (s *StateStore) MoveColumn(fromID, beforeID string) {
	s.mutate(true, func() bool {
		if fromID == beforeID || columnIndex(s.columns, fromID) < 0 {
			return false
		}
		if beforeID != "" && columnIndex(s.columns, beforeID) < 0 {
			return false
		}
		working := s.orderedIDsLocked()
		next := make([]string, 0, len(working))
		for _, id := range working {
			if id != fromID {
				next = append(next, id)
			}
		}
		at := len(next)
		if beforeID != "" {
			for i, id := range next {
				if id == beforeID {
					at = i
					break
				}
			}
		}
		next = append(next[:at], append([]string{fromID}, next[at:]...)...)
		if equalStrings(next, s.colOrder) {
			return false
		}
		s.colOrder = next
		return true
	})
}

// SetSort sets the sort state. An empty field clears sorting.
func (s *StateStore) SetSort(field string, dir SortDir) {
	if dir != SortDesc {
		dir = SortAsc
	}
	s.mutate(true, func() bool {
		next := SortState{Field: field, Direction: dir}
		if field == "" {
			next.Direction = SortAsc
		}
		if s.sort == next {
			return false
		}
		s.sort = next
		return true
	})
}

// ToggleSort cycles a column through ascending, descending and unsorted.
func (s *StateStore) ToggleSort(field string) {
	s.mutate(true, func() bool {
		switch {
		case s.sort.Field != field:
			s.sort = SortState{Field: field, Direction: SortAsc}
		case s.sort.Direction == SortAsc:
			s.sort.Direction = SortDesc
		default:
			s.sort = SortState{Direction: SortAsc}
		}
		return true
	})
}

// AddFilter appends a rule and returns its id.
func (s *StateStore) AddFilter(field string, op Operator, value string) string {
	id := s.newID()
	s.mutate(false, func() bool {
		s.filters = append(append([]FilterRule{}, s.filters...), FilterRule{
			ID: id, Field: field, Operator: op, Value: value,
		})
		return true
	})
	return id
}

// UpdateFilter replaces the rule with the same id.
func (s *StateStore) UpdateFilter(rule FilterRule) {
	s.mutate(false, func() bool {
		for i, f := range s.filters {
			if f.ID == rule.ID {
				if f == rule {
					return false
				}
				next := append([]FilterRule{}, s.filters...)
				next[i] = rule
				s.filters = next
				return true
			}
		}
		return false
	})
}

func (s *StateStore) RemoveFilter(id string) {
	s.mutate(false, func() bool {
		for i, f := range s.filters {
			if f.ID == id {
				s.filters = append(append([]FilterRule{}, s.filters[:i]...), s.filters[i+1:]...)
				return true
			}
		}
		return false
	})
}

func (s *StateStore) ClearFilters() {
	s.mutate(false, func() bool {
		if len(s.filters) == 0 {
			return false
		}
		s.filters = nil
		return true
	})
}

func (s *StateStore) SetSearch(text string) {
	s.mutate(false, func() bool {
		if s.search == text {
			return false
		}
		s.search = text
		return true
	})
}

// OpenDetail addresses the detail panel at a row id.
func (s *StateStore) OpenDetail(rowID string) {
	s.mutate(false, func() bool {
		if s.detailRowID == rowID {
			return false
		}
		s.detailRowID = rowID
		return true
	})
}

func (s *StateStore) CloseDetail() { s.OpenDetail("") }

func (s *StateStore) SetFullscreen(on bool) {
	s.mutate(false, func() bool {
		if s.fullscreen == on {
			return false
		}
		s.fullscreen = on
		return true
	})
}

func (s *StateStore) ToggleFullscreen() {
	s.mutate(false, func() bool {
		s.fullscreen = !s.fullscreen
		return true
	})
}

// HandleKey applies store-level keyboard behavior and reports whether the
// key was consumed. Escape leaves fullscreen.
func (s *StateStore) HandleKey(k Key) bool {
	if k != KeyEscape {
		return false
	}
	handled := false
	s.mutate(false, func() bool {
		if !s.fullscreen {
			return false
		}
		s.fullscreen = false
		handled = true
		return true
	})
	return handled
}

// SetGroupField sets the grouping column. An empty field disables grouping.
func (s *StateStore) SetGroupField(field string) {
	s.mutate(false, func() bool {
		if s.groupField == field {
			return false
		}
		s.groupField = field
		return true
	})
}

// OrderedColumns returns every known column in display order.
func (s *StateStore) OrderedColumns() []ColumnDef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return orderedColumns(s.colOrder, s.columns)
}

// VisibleColumns returns the ordered columns minus the hidden set.
func (s *StateStore) VisibleColumns() []ColumnDef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return visibleColumns(s.colOrder, s.hidden, s.columns)
}

func orderedColumns(order []string, columns []ColumnDef) []ColumnDef {
	ids := orderIDs(order, columns)
	out := make([]ColumnDef, 0, len(ids))
	for _, id := range ids {
		out = append(out, columns[columnIndex(columns, id)])
	}
	return out
}

func visibleColumns(order, hidden []string, columns []ColumnDef) []ColumnDef {
	hiddenSet := make(map[string]bool, len(hidden))
	for _, h := range hidden {
		hiddenSet[h] = true
	}
	var out []ColumnDef
	for _, c := range orderedColumns(order, columns) {
		if !hiddenSet[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

func (s Snapshot) OrderedColumns() []ColumnDef { return orderedColumns(s.ColOrder, s.Columns) }

func (s Snapshot) VisibleColumns() []ColumnDef {
	return visibleColumns(s.ColOrder, s.HiddenCols, s.Columns)
}

// Query returns the pipeline inputs held by the snapshot.
func (s Snapshot) Query() Query {
	return Query{Filters: s.Filters, Search: s.Search, Sort: s.Sort}
}

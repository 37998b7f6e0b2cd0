package dbview

import (
	"sort"
	"sync"
)

// PointerKind is the type of a global pointer event.
type PointerKind int

const (
	PointerMove PointerKind = iota
	PointerUp
	PointerCancel
)

// PointerEvent is a pointer update delivered to active gestures.
type PointerEvent struct {
	Kind PointerKind
	X, Y int
}

// PointerHub fans global pointer events out to subscribers. Gestures only
// subscribe while they are active.
type PointerHub struct {
	mu     sync.Mutex
	subs   map[int]func(PointerEvent)
	nextID int
}

func NewPointerHub() *PointerHub {
	return &PointerHub{subs: make(map[int]func(PointerEvent))}
}

func (h *PointerHub) Subscribe(fn func(PointerEvent)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Dispatch delivers ev to every current subscriber.
func (h *PointerHub) Dispatch(ev PointerEvent) {
	h.mu.Lock()
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(PointerEvent), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.subs[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Subscribers returns the number of live subscriptions.
func (h *PointerHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// GestureState is the phase of a drag gesture.
type GestureState int

const (
	GestureIdle GestureState = iota
	GestureActive
	GestureReleased
	GestureCancelled
)

func (s GestureState) String() string {
	switch s {
	case GestureActive:
		return "active"
	case GestureReleased:
		return "released"
	case GestureCancelled:
		return "cancelled"
	}
	return "idle"
}

// Gesture is a single drag: idle -> active -> released|cancelled. It holds
// a hub subscription exactly while active.
type Gesture struct {
	hub   *PointerHub
	state GestureState
	unsub func()

	startX, startY int
	lastX, lastY   int

	OnMove    func(dx, dy, x, y int)
	OnRelease func(dx, dy, x, y int)
	OnCancel  func()
}

func NewGesture(hub *PointerHub) *Gesture {
	return &Gesture{hub: hub}
}

func (g *Gesture) State() GestureState { return g.state }
func (g *Gesture) Active() bool { return g.state == GestureActive }

// Start begins tracking at (x, y). It is a no-op while already active.
func (g *Gesture) Start(x, y int) bool {
	if g.state == GestureActive {
		return false
	}
	g.state = GestureActive
	g.startX, g.startY = x, y
	g.lastX, g.lastY = x, y
	if g.hub != nil {
		g.unsub = g.hub.Subscribe(g.handle)
	}
	return true
}

func (g *Gesture) handle(ev PointerEvent) {
	switch ev.Kind {
	case PointerMove:
		g.Move(ev.X, ev.Y)
	case PointerUp:
		g.Release(ev.X, ev.Y)
	case PointerCancel:
		g.Cancel()
	}
}

func (g *Gesture) Move(x, y int) {
	if g.state != GestureActive {
		return
	}
	g.lastX, g.lastY = x, y
	if g.OnMove != nil {
		g.OnMove(x-g.startX, y-g.startY, x, y)
	}
}

func (g *Gesture) Release(x, y int) {
	if g.state != GestureActive {
		return
	}
	g.lastX, g.lastY = x, y
	g.finish(GestureReleased)
	if g.OnRelease != nil {
		g.OnRelease(x-g.startX, y-g.startY, x, y)
	}
}

func (g *Gesture) Cancel() {
	if g.state != GestureActive {
		return
	}
	g.finish(GestureCancelled)
	if g.OnCancel != nil {
		g.OnCancel()
	}
}

func (g *Gesture) finish(state GestureState) {
	g.state = state
	if g.unsub != nil {
		g.unsub()
		g.unsub = nil
	}
}

const (
	DefaultColumnWidth = 150
	MinColumnWidth     = 60
)

// ColumnResize tracks per-column widths changed by dragging a column border.
type ColumnResize struct {
	gesture    *Gesture
	widths     map[string]int
	colID      string
	startWidth int
	Min        int
}

func NewColumnResize(hub *PointerHub) *ColumnResize {
	r := &ColumnResize{
		gesture: NewGesture(hub),
		widths:  make(map[string]int),
		Min:     MinColumnWidth,
	}
	r.gesture.OnMove = func(dx, _, _, _ int) { r.apply(dx) }
	r.gesture.OnRelease = func(dx, _, _, _ int) {
		r.apply(dx)
		r.colID = ""
	}
	r.gesture.OnCancel = func() {
		r.widths[r.colID] = r.startWidth
		r.colID = ""
	}
	return r
}

// Width returns the effective width of a column.
func (r *ColumnResize) Width(col ColumnDef) int {
	if w, ok := r.widths[col.ID]; ok {
		return w
	}
	if col.Width > 0 {
		return col.Width
	}
	return DefaultColumnWidth
}

// Begin starts resizing col from pointer position x.
func (r *ColumnResize) Begin(col ColumnDef, x int) bool {
	if col.ID == "" || r.gesture.Active() {
		return false
	}
	r.colID = col.ID
	r.startWidth = r.Width(col)
	return r.gesture.Start(x, 0)
}

func (r *ColumnResize) apply(dx int) {
	if r.colID == "" {
		return
	}
	w := r.startWidth + dx
	if w < r.Min {
		w = r.Min
	}
	r.widths[r.colID] = w
}

func (r *ColumnResize) Gesture() *Gesture { return r.gesture }
func (r *ColumnResize) Active() bool { return r.gesture.Active() }

// DropAtEnd is the HitTest result for the space past the last column.
const DropAtEnd = "\x00end"

// ColumnReorder drags a column header onto another and commits the move to
// the store on release.
type ColumnReorder struct {
	gesture *Gesture
	store   *StateStore
	dragID  string
	overID  string

	// HitTest resolves the column under a pointer position.
	HitTest func(x, y int) string
}

func NewColumnReorder(hub *PointerHub, store *StateStore) *ColumnReorder {
	r := &ColumnReorder{gesture: NewGesture(hub), store: store}
	r.gesture.OnMove = func(_, _, x, y int) {
		if r.HitTest != nil {
			if id := r.HitTest(x, y); id != "" {
				r.overID = id
			}
		}
	}
	r.gesture.OnRelease = func(_, _, x, y int) {
		if r.HitTest != nil {
			if id := r.HitTest(x, y); id != "" {
				r.overID = id
			}
		}
		from, before := r.dragID, r.overID
		r.dragID, r.overID = "", ""
		if from == "" || before == "" || from == before {
			return
		}
		if before == DropAtEnd {
			before = ""
		}
		r.store.MoveColumn(from, before)
	}
	r.gesture.OnCancel = func() {
		r.dragID, r.overID = "", ""
	}
	return r
}

// Begin picks up colID at (x, y).
func (r *ColumnReorder) Begin(colID string, x, y int) bool {
	if colID == "" || r.gesture.Active() {
		return false
	}
	r.dragID = colID
	r.overID = ""
	return r.gesture.Start(x, y)
}

// Hover sets the drop target directly, for hosts without hit testing.
func (r *ColumnReorder) Hover(colID string) {
	if r.gesture.Active() {
		r.overID = colID
	}
}

func (r *ColumnReorder) Dragging() string { return r.dragID }
func (r *ColumnReorder) Over() string { return r.overID }
func (r *ColumnReorder) Gesture() *Gesture { return r.gesture }
func (r *ColumnReorder) Active() bool { return r.gesture.Active() }

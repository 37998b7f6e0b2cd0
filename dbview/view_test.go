package dbview

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	updates   []string
	creates   []Row
	deletes   []string
	navigated []string
}

func (r *recorded) callbacks() Callbacks {
	return Callbacks{
		OnUpdate: func(_ context.Context, rowID, columnID string, value Value) error {
			r.updates = append(r.updates, fmt.Sprintf("%s.%s=%s", rowID, columnID, value.Stringify()))
			return nil
		},
		OnCreate: func(_ context.Context, partial Row) error {
			r.creates = append(r.creates, partial)
			return nil
		},
		OnDelete: func(_ context.Context, rowID string) error {
			r.deletes = append(r.deletes, rowID)
			return fmt.Errorf("delete of %s rejected", rowID)
		},
		OnRowNavigate: func(rowID string) { r.navigated = append(r.navigated, rowID) },
	}
}

func newTestView(t *testing.T, rec *recorded, reg Registry) *View {
	t.Helper()
	opts := Options{
		StateKey:   "tasks",
		Storage:    NewMemoryStorage(),
		Dispatcher: SyncDispatcher{},
	}
	if reg != nil {
		opts.Registry = reg
	}
	if rec != nil {
		opts.Callbacks = rec.callbacks()
	}
	v := NewView(context.Background(), taskColumns, opts)
	t.Cleanup(v.Close)
	v.SetRows(taskRows())
	return v
}

func cardIDs(sections []CardSection) []string {
	var out []string
	for _, s := range sections {
		for _, c := range s.Cards {
			out = append(out, c.RowID)
		}
	}
	return out
}

func TestFilteredRowsAcrossRenderers(t *testing.T) {
	v := newTestView(t, nil, nil)
	v.Store().AddFilter("status", OpIs, "done")
	want := []string{"1", "3", "4"}

	f := v.Frame(120, Cursor{})
	assert.Equal(t, want, ids(f.Rows))

	r := v.Renderers()
	assert.Equal(t, want, ids(r.Table.Layout(f).Sections[0].Rows))
	assert.Equal(t, want, cardIDs(r.Board.Lanes(f)))
	assert.Equal(t, want, cardIDs(r.Gallery.Sections(f)))
	assert.Equal(t, want, cardIDs(r.List.Sections(f)))

	for _, mode := range ViewModes() {
		v.Store().SetView(mode)
		out := v.Render(120, Cursor{})
		assert.Contains(t, out, "Ship release", mode)
		assert.NotContains(t, out, "Fix login", mode)
		assert.NotContains(t, out, "Plan sprint", mode)
	}
}

func TestBoardLanes(t *testing.T) {
	v := newTestView(t, nil, nil)
	rows := append(taskRows(), NewRow("6", map[string]any{"title": "Stray", "status": "blocked"}))
	v.SetRows(rows)

	f := v.Frame(0, Cursor{})
	lanes := v.Renderers().Board.Lanes(f)
	require.Len(t, lanes, 3)
	assert.Equal(t, "Done", lanes[0].Label)
	assert.Equal(t, "Open", lanes[1].Label)
	assert.Equal(t, UngroupedLabel, lanes[2].Label)
	assert.Equal(t, []string{"6"}, cardIDs(lanes[2:]))

	title := lanes[0].Cards[0]
	assert.Equal(t, "Write docs", title.Title)
	require.Len(t, title.Fields, 1)
	assert.Equal(t, "status", title.Fields[0].ColumnID)
	assert.Equal(t, "Done", title.Fields[0].Text)

	t.Run("distinct values without options", func(t *testing.T) {
		v.Store().SetGroupField("priority")
		lanes := v.Renderers().Board.Lanes(v.Frame(0, Cursor{}))
		require.Len(t, lanes, 3)
		assert.Equal(t, []string{"P0", "P1", UngroupedLabel}, []string{lanes[0].Label, lanes[1].Label, lanes[2].Label})
	})
}

func TestMoveCard(t *testing.T) {
	rec := &recorded{}
	v := newTestView(t, rec, nil)

	require.True(t, v.MoveCard("2", "done"))
	assert.Equal(t, []string{"2.status=done"}, rec.updates)
	row, ok := v.Row("2")
	require.True(t, ok)
	assert.Equal(t, "done", row.Get("status").Str())
}

func TestGalleryAndListFields(t *testing.T) {
	v := newTestView(t, nil, nil)
	f := v.Frame(0, Cursor{})

	gallery := v.Renderers().Gallery.Sections(f)
	require.Len(t, gallery, 1)
	card := gallery[0].Cards[0]
	assert.Equal(t, "Write docs", card.Title)
	assert.Equal(t, []string{"status", "priority", "estimate"}, fieldIDs(card.Fields))

	list := v.Renderers().List.Sections(f)
	assert.Equal(t, []string{"status", "priority"}, fieldIDs(list[0].Cards[0].Fields))

	assert.Equal(t, 3, v.Renderers().Gallery.Columns(95))
	assert.Equal(t, 1, v.Renderers().Gallery.Columns(10))
}

func fieldIDs(fields []CardField) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.ColumnID)
	}
	return out
}

func TestTitleColumn(t *testing.T) {
	c, ok := TitleColumn([]ColumnDef{{ID: "x", Type: TypeNumber}, {ID: "name", Type: TypeSelect}})
	require.True(t, ok)
	assert.Equal(t, "name", c.ID)

	c, _ = TitleColumn([]ColumnDef{{ID: "x", Type: TypeNumber}, {ID: "y", Type: TypeText}})
	assert.Equal(t, "y", c.ID)

	c, _ = TitleColumn([]ColumnDef{{ID: "x", Type: TypeNumber}})
	assert.Equal(t, "x", c.ID)

	_, ok = TitleColumn(nil)
	assert.False(t, ok)
}

func TestTablePagination(t *testing.T) {
	v := newTestView(t, nil, nil)
	rows := make([]Row, 0, 60)
	for i := 0; i < 60; i++ {
		status := "open"
		if i%3 == 0 {
			status = "done"
		}
		rows = append(rows, NewRow(fmt.Sprint(i), map[string]any{"title": fmt.Sprintf("Task %d", i), "status": status}))
	}
	v.SetRows(rows)
	table := v.Renderers().Table

	l := table.Layout(v.Frame(0, Cursor{}))
	assert.True(t, l.Paginated)
	assert.Equal(t, 3, l.PageCount)
	assert.Len(t, l.Sections[0].Rows, DefaultPageSize)

	table.SetPage(9)
	l = table.Layout(v.Frame(0, Cursor{}))
	assert.Equal(t, 2, l.Page)
	assert.Len(t, l.Sections[0].Rows, 10)
	assert.Equal(t, "50", l.Sections[0].Rows[0].ID)

	v.Store().SetGroupField("status")
	l = table.Layout(v.Frame(0, Cursor{}))
	assert.False(t, l.Paginated)
	require.Len(t, l.Sections, 2)
	assert.Len(t, l.Sections[0].Rows, 20)
	assert.Len(t, l.Sections[1].Rows, 40)

	table.Collapsed.Toggle("Open")
	out := table.Render(v.Frame(0, Cursor{}))
	assert.Contains(t, out, "Task 0")
	assert.NotContains(t, out, "Task 1 ")
}

func TestTableHeaderHitTest(t *testing.T) {
	v := newTestView(t, nil, nil)
	table := v.Renderers().Table
	table.Layout(v.Frame(0, Cursor{}))

	assert.Equal(t, "title", table.HeaderAt(0, 0))
	assert.Equal(t, "status", table.HeaderAt(16*PixelsPerCell, 0))
	assert.Equal(t, "", table.HeaderAt(-5, 0))

	col, ok := table.BorderAt(15 * PixelsPerCell)
	require.True(t, ok)
	assert.Equal(t, "title", col.ID)

	hub := v.Hub()
	require.True(t, table.Reorder.Begin("estimate", 50*PixelsPerCell, 0))
	hub.Dispatch(PointerEvent{Kind: PointerMove, X: 1})
	hub.Dispatch(PointerEvent{Kind: PointerUp, X: 2})
	assert.Equal(t, []string{"estimate", "title", "status", "priority"}, v.Snapshot().ColOrder)
}

func TestDetailPanel(t *testing.T) {
	rec := &recorded{}
	v := newTestView(t, rec, nil)

	assert.Nil(t, v.OpenDetail("missing"))
	p := v.OpenDetail("2")
	require.NotNil(t, p)
	assert.Equal(t, "2", v.Snapshot().DetailRowID)
	assert.Equal(t, "title", p.Title().Column.ID)
	assert.Len(t, p.Fields(), 3)

	ed := p.Editor("estimate")
	require.NotNil(t, ed)
	require.True(t, ed.Begin())
	ed.Input("13")
	ed.Commit()
	assert.Equal(t, []string{"2.estimate=13"}, rec.updates)
	row, _ := v.Row("2")
	assert.Equal(t, 13.0, row.Get("estimate").Num())

	p.Navigate()
	assert.Equal(t, []string{"2"}, rec.navigated)

	p.Delete()
	assert.Equal(t, []string{"2"}, rec.deletes)
	assert.Equal(t, "", v.Snapshot().DetailRowID)
	assert.Nil(t, v.Detail())
	_, ok := v.Row("2")
	assert.True(t, ok)
}

func TestCreateRow(t *testing.T) {
	rec := &recorded{}
	v := newTestView(t, rec, nil)
	v.CreateRow(NewRow("", map[string]any{"title": "New"}))
	require.Len(t, rec.creates, 1)
	assert.Equal(t, "New", rec.creates[0].Get("title").Str())
}

func TestAddCustomColumn(t *testing.T) {
	reg := newFakeRegistry()
	v := newTestView(t, nil, reg)
	v.Store().MoveColumn("estimate", "title")

	id, err := v.Controls().AddColumn(context.Background(), "Owner", TypeText)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, ColumnIDPrefix))
	assert.Len(t, id, len(ColumnIDPrefix)+8)

	require.Len(t, reg.created, 1)
	assert.Equal(t, "Owner", reg.created[0].ColLabel)
	assert.Equal(t, []string{"estimate", "title", "status", "priority", id}, v.Snapshot().ColOrder)

	_, err = v.AddCustomColumn(context.Background(), "Bad", "spreadsheet")
	assert.Error(t, err)

	bare := newTestView(t, nil, nil)
	_, err = bare.AddCustomColumn(context.Background(), "x", TypeText)
	assert.ErrorIs(t, err, ErrNoRegistry)
}

func TestColumnControls(t *testing.T) {
	v := newTestView(t, nil, nil)
	c := v.Controls()

	c.Toggle("status")
	entries := c.Entries()
	require.Len(t, entries, 4)
	assert.False(t, entries[1].Visible)
	assert.Equal(t, []string{"title", "priority", "estimate"}, columnIDs(v.Frame(0, Cursor{}).Columns))

	c.Drag("estimate", "title")
	assert.Equal(t, []string{"estimate", "title", "status", "priority"}, v.Snapshot().ColOrder)
	assert.Equal(t, 0, v.Hub().Subscribers())

	c.ShowAll()
	assert.Contains(t, c.Render(0), "Status")
}

func TestColumnControlsDragToEnd(t *testing.T) {
	v := newTestView(t, nil, nil)
	c := v.Controls()

	c.Drag("status", "")
	assert.Equal(t, []string{"title", "priority", "estimate", "status"}, v.Snapshot().ColOrder)
	assert.Equal(t, 0, v.Hub().Subscribers())

	// already last
	c.Drag("status", "")
	assert.Equal(t, []string{"title", "priority", "estimate", "status"}, v.Snapshot().ColOrder)

	r := c.Reorder()
	require.True(t, r.Begin("title", 0, 0))
	v.Hub().Dispatch(PointerEvent{Kind: PointerUp, X: 0, Y: 4})
	assert.Equal(t, []string{"priority", "estimate", "status", "title"}, v.Snapshot().ColOrder)
}

func TestNewViewKeepsSavedCustomOrder(t *testing.T) {
	storage := NewMemoryStorage()
	reg := newFakeRegistry()
	reg.columns["tasks"] = []CustomColumnDef{{ColID: "col_owner", ColLabel: "Owner", ColType: TypeText}}
	require.NoError(t, SaveViewConfig(storage, "tasks", ViewConfig{ColOrder: []string{"estimate", "col_owner", "title"}}))

	v := NewView(context.Background(), taskColumns, Options{StateKey: "tasks", Storage: storage, Registry: reg, Dispatcher: SyncDispatcher{}})
	t.Cleanup(v.Close)
	assert.Equal(t, []string{"estimate", "col_owner", "title", "status", "priority"}, v.Snapshot().ColOrder)
}

func TestViewSetStateKey(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	reg := newFakeRegistry()
	reg.columns["archive"] = []CustomColumnDef{{ColID: "col_owner", ColLabel: "Owner", ColType: TypeText}}
	require.NoError(t, SaveViewConfig(storage, "archive", ViewConfig{
		View:     ViewBoard,
		ColOrder: []string{"col_owner", "title"},
	}))

	v := NewView(ctx, taskColumns, Options{StateKey: "tasks", Storage: storage, Registry: reg, Dispatcher: SyncDispatcher{}})
	t.Cleanup(v.Close)
	v.SetRows(taskRows())
	v.Store().ToggleHidden("status")
	v.Store().SetSearch("login")
	require.NotNil(t, v.OpenDetail("1"))

	v.SetStateKey(ctx, "archive")
	snap := v.Snapshot()
	assert.Equal(t, "archive", snap.StateKey)
	assert.Equal(t, ViewBoard, snap.View)
	assert.Equal(t, []string{"col_owner", "title", "status", "priority", "estimate"}, snap.ColOrder)
	assert.Empty(t, snap.HiddenCols)
	assert.Empty(t, snap.Search)
	assert.Nil(t, v.Detail())

	v.Store().ToggleHidden("priority")
	saved, ok := LoadViewConfig(storage, "archive", columnIDs(v.Columns()))
	require.True(t, ok)
	assert.Equal(t, []string{"priority"}, saved.HiddenCols)
	tasks, ok := LoadViewConfig(storage, "tasks", columnIDs(taskColumns))
	require.True(t, ok)
	assert.Equal(t, []string{"status"}, tasks.HiddenCols)

	v.SetStateKey(ctx, "tasks")
	assert.Equal(t, []string{"status"}, v.Snapshot().HiddenCols)
	assert.Equal(t, []string{"title", "status", "priority", "estimate"}, v.Snapshot().ColOrder)
}

func TestStatsLine(t *testing.T) {
	v := newTestView(t, nil, nil)
	v.SetStats(&Stats{Total: 9, ByStatus: map[string]int{"open": 2, "done": 3}})
	out := v.Render(200, Cursor{})
	assert.Contains(t, out, "5 of 9 · done 3 · open 2")

	v.Store().SetFullscreen(true)
	assert.NotContains(t, v.Render(200, Cursor{}), "5 of 9")
}

func TestValueCounts(t *testing.T) {
	v := newTestView(t, nil, nil)
	counts := v.ValueCounts("status")
	require.Len(t, counts, 2)
	assert.Equal(t, "Done", counts[0].Label)
	assert.Equal(t, 3, counts[0].Count)
	assert.Nil(t, v.ValueCounts("nope"))
}

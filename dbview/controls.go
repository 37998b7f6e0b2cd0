package dbview

import (
	"context"
	"strings"
)

// ColumnEntry is one row of the column customization menu.
type ColumnEntry struct {
	Column  ColumnDef
	Visible bool
}

// ColumnControls is the column menu: visibility toggles, drag reorder and
// the add custom column request.
type ColumnControls struct {
	store   *StateStore
	reorder *ColumnReorder
	add     func(ctx context.Context, label string, t ColumnType) (string, error)
}

func newColumnControls(hub *PointerHub, store *StateStore, add func(context.Context, string, ColumnType) (string, error)) *ColumnControls {
	c := &ColumnControls{store: store, reorder: NewColumnReorder(hub, store), add: add}
	// one menu entry per line
	c.reorder.HitTest = func(_, y int) string {
		entries := c.Entries()
		if y == len(entries) {
			return DropAtEnd
		}
		if y < 0 || y > len(entries) {
			return ""
		}
		return entries[y].Column.ID
	}
	return c
}

// Entries lists every known column in display order.
func (c *ColumnControls) Entries() []ColumnEntry {
	snap := c.store.Snapshot()
	cols := snap.OrderedColumns()
	out := make([]ColumnEntry, 0, len(cols))
	for _, col := range cols {
		out = append(out, ColumnEntry{Column: col, Visible: !snap.Hidden(col.ID)})
	}
	return out
}

func (c *ColumnControls) Toggle(colID string) { c.store.ToggleHidden(colID) }
func (c *ColumnControls) ShowAll() { c.store.ShowAll() }

// Reorder exposes the drag gesture that moves menu entries.
func (c *ColumnControls) Reorder() *ColumnReorder { return c.reorder }

// Drag moves fromID in front of beforeID by running the reorder gesture
// from one menu line to the other. An empty beforeID drops past the last
// line.
func (c *ColumnControls) Drag(fromID, beforeID string) {
	entries := c.Entries()
	from, before := -1, -1
	if beforeID == "" {
		before = len(entries)
	}
	for i, e := range entries {
		switch e.Column.ID {
		case fromID:
			from = i
		case beforeID:
			before = i
		}
	}
	if from < 0 || before < 0 || !c.reorder.Begin(fromID, 0, from) {
		return
	}
	c.reorder.Gesture().Release(0, before)
}

// AddColumn creates a custom column and returns its id.
func (c *ColumnControls) AddColumn(ctx context.Context, label string, t ColumnType) (string, error) {
	return c.add(ctx, label, t)
}

// Render draws the menu with the entry at cursor highlighted.
func (c *ColumnControls) Render(cursor int) string {
	var b strings.Builder
	b.WriteString(groupStyle.Render("Columns") + "\n")
	for i, e := range c.Entries() {
		mark := "[ ]"
		if e.Visible {
			mark = "[x]"
		}
		line := mark + " " + e.Column.Label + dimStyle.Render("  "+string(e.Column.Type))
		if c.reorder.Active() && c.reorder.Dragging() == e.Column.ID {
			line = "≡ " + line
		}
		if i == cursor {
			line = cursorStyle.Render("›") + " " + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(dimStyle.Render("space toggle · < > move · a add column · A show all · esc close"))
	return b.String()
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/paperless-link/dbview/dbview"
)

var (
	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("8"))
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12"))
	barInfoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	pickStyle      = lipgloss.NewStyle().Bold(true).Underline(true)
)

const resizeStep = 2 * dbview.PixelsPerCell

type inputMode int

const (
	inputNone inputMode = iota
	inputSearch
	inputEdit
	inputAddColumn
	inputNewRow
)

// browseModel is the bubbletea model of the browse command. The engine holds
// all view state; the model only tracks the cursor and what has focus.
type browseModel struct {
	ctx    context.Context
	view   *dbview.View
	width  int
	height int

	row int // index into the displayed rows
	col int // index into the visible columns

	input  textinput.Model
	mode   inputMode
	editor *dbview.CellEditor
	pick   int // highlighted option while a picker is open

	focus        int // detail panel editor
	showControls bool
	ctrlIdx      int

	status string
	failed bool
}

func newBrowseModel(ctx context.Context, view *dbview.View) browseModel {
	in := textinput.New()
	in.CharLimit = 256
	in.Width = 48
	return browseModel{ctx: ctx, view: view, input: in}
}

func (m browseModel) Init() tea.Cmd {
	return textinput.Blink
}

// displayedRows returns the rows in on-screen order: group by group when
// grouped, otherwise pipeline order.
func displayedRows(f dbview.Frame) []dbview.Row {
	if len(f.Groups) == 0 {
		return f.Rows
	}
	var rows []dbview.Row
	for _, g := range f.Groups {
		rows = append(rows, g.Rows...)
	}
	return rows
}

// current clamps the cursor to the frame and returns the row and column
// under it.
func (m *browseModel) current(f dbview.Frame) (dbview.Row, dbview.ColumnDef, bool) {
	rows := displayedRows(f)
	if m.col >= len(f.Columns) {
		m.col = len(f.Columns) - 1
	}
	if m.col < 0 {
		m.col = 0
	}
	if m.row >= len(rows) {
		m.row = len(rows) - 1
	}
	if m.row < 0 {
		m.row = 0
	}
	if len(rows) == 0 || len(f.Columns) == 0 {
		return dbview.Row{}, dbview.ColumnDef{}, false
	}
	return rows[m.row], f.Columns[m.col], true
}

func (m *browseModel) frame() dbview.Frame {
	return m.view.Frame(m.width, dbview.Cursor{})
}

func (m *browseModel) cursor() dbview.Cursor {
	row, col, ok := m.current(m.frame())
	if !ok {
		return dbview.Cursor{}
	}
	return dbview.Cursor{RowID: row.ID, ColumnID: col.ID}
}

func (m *browseModel) setStatus(format string, args ...interface{}) {
	m.status = fmt.Sprintf(format, args...)
	m.failed = false
}

func (m *browseModel) setError(err error) {
	m.status = err.Error()
	m.failed = true
}

// headerY is the screen line of the table header.
func (m *browseModel) headerY() int {
	if m.view.Snapshot().Fullscreen {
		return 0
	}
	return 2 // tab bar, stats line
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case hostMsg:
		if msg.apply != nil {
			msg.apply()
		}
		if msg.err != nil {
			m.setError(fmt.Errorf("%s: %w", msg.status, msg.err))
		} else {
			m.setStatus("%s", msg.status)
		}
		return m, nil
	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch {
		case m.mode != inputNone:
			return m.updateInput(msg)
		case m.editor != nil:
			m.updatePicker(msg)
			return m, nil
		case m.view.Detail() != nil:
			cmd := m.updateDetail(msg)
			return m, cmd
		case m.showControls:
			return m.updateControls(msg)
		}
		return m.updateGrid(msg)
	}
	return m, nil
}

func (m *browseModel) openInput(mode inputMode, placeholder, value string) tea.Cmd {
	m.mode = mode
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *browseModel) closeInput() {
	m.mode = inputNone
	m.input.Blur()
	m.input.SetValue("")
}

func (m browseModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		switch m.mode {
		case inputSearch:
			m.view.Store().SetSearch("")
		case inputEdit:
			m.editor.HandleKey(dbview.KeyEscape)
			m.editor = nil
		}
		m.closeInput()
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		switch m.mode {
		case inputEdit:
			m.editor.Input(m.input.Value())
			m.editor.HandleKey(dbview.KeyEnter)
			m.editor = nil
		case inputAddColumn:
			m.addColumn(value)
		case inputNewRow:
			m.newRow(value)
		}
		m.closeInput()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == inputSearch {
		m.view.Store().SetSearch(m.input.Value())
		m.row = 0
	}
	return m, cmd
}

// addColumn parses "Label" or "Label:type".
func (m *browseModel) addColumn(spec string) {
	label, typ, _ := strings.Cut(spec, ":")
	label = strings.TrimSpace(label)
	t := dbview.ColumnType(strings.TrimSpace(typ))
	if t == "" {
		t = dbview.TypeText
	}
	if label == "" {
		m.setStatus("column label is required")
		return
	}
	id, err := m.view.Controls().AddColumn(m.ctx, label, t)
	if err != nil {
		m.setError(err)
		return
	}
	m.setStatus("added column %s (%s)", label, id)
}

func (m *browseModel) newRow(title string) {
	fields := map[string]any{}
	if col, ok := dbview.TitleColumn(m.view.Columns()); ok && title != "" {
		fields[col.ID] = title
	}
	m.view.CreateRow(dbview.NewRow("", fields))
}

func isPicker(t dbview.ColumnType) bool {
	return t == dbview.TypeSelect || t == dbview.TypeBadge || t == dbview.TypeMultiSelect
}

// beginEdit opens the right widget for ed's column type.
func (m *browseModel) beginEdit(ed *dbview.CellEditor) tea.Cmd {
	if ed.Column.Type == dbview.TypeCheckbox {
		if !ed.Toggle() {
			m.setStatus("%s is read-only", ed.Column.Label)
		}
		return nil
	}
	if !ed.Begin() {
		m.setStatus("%s is read-only", ed.Column.Label)
		return nil
	}
	if !isPicker(ed.Column.Type) {
		m.editor = ed
		return m.openInput(inputEdit, ed.Column.Label, ed.Draft())
	}
	if len(ed.Column.Options) == 0 {
		ed.Cancel()
		m.setStatus("%s has no options", ed.Column.Label)
		return nil
	}
	m.editor = ed
	m.pick = 0
	for i, o := range ed.Column.Options {
		if o.Value == ed.Value().Stringify() {
			m.pick = i
		}
	}
	return nil
}

func (m *browseModel) updatePicker(msg tea.KeyMsg) {
	ed := m.editor
	opts := ed.Column.Options
	switch msg.String() {
	case "left", "h", "up", "k":
		m.pick = (m.pick + len(opts) - 1) % len(opts)
	case "right", "l", "down", "j", "tab":
		m.pick = (m.pick + 1) % len(opts)
	case " ":
		if ed.Column.Type == dbview.TypeMultiSelect {
			ed.ToggleOption(opts[m.pick].Value)
		}
	case "enter":
		if ed.Column.Type == dbview.TypeMultiSelect {
			ed.Commit()
		} else {
			ed.Choose(opts[m.pick].Value)
		}
		m.editor = nil
	case "esc":
		ed.HandleKey(dbview.KeyEscape)
		m.editor = nil
	}
}

func (m *browseModel) updateDetail(msg tea.KeyMsg) tea.Cmd {
	p := m.view.Detail()
	editors := p.Editors()
	if m.focus >= len(editors) {
		m.focus = len(editors) - 1
	}
	if m.focus < 0 {
		m.focus = 0
	}
	switch msg.String() {
	case "up", "k":
		if m.focus > 0 {
			m.focus--
		}
	case "down", "j":
		if m.focus < len(editors)-1 {
			m.focus++
		}
	case "enter", "e", " ":
		if len(editors) > 0 {
			return m.beginEdit(editors[m.focus])
		}
	case "d":
		p.Delete()
	case "o":
		p.Navigate()
	case "esc", "q":
		p.Close()
	}
	return nil
}

func (m browseModel) updateControls(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.view.Controls()
	entries := c.Entries()
	if m.ctrlIdx >= len(entries) {
		m.ctrlIdx = len(entries) - 1
	}
	if len(entries) == 0 {
		m.showControls = false
		return m, nil
	}
	id := entries[m.ctrlIdx].Column.ID
	switch msg.String() {
	case "up", "k":
		if m.ctrlIdx > 0 {
			m.ctrlIdx--
		}
	case "down", "j":
		if m.ctrlIdx < len(entries)-1 {
			m.ctrlIdx++
		}
	case " ", "x":
		c.Toggle(id)
	case "<":
		if m.ctrlIdx > 0 {
			c.Drag(id, entries[m.ctrlIdx-1].Column.ID)
			m.ctrlIdx--
		}
	case ">":
		if m.ctrlIdx < len(entries)-1 {
			before := ""
			if m.ctrlIdx+2 < len(entries) {
				before = entries[m.ctrlIdx+2].Column.ID
			}
			c.Drag(id, before)
			m.ctrlIdx++
		}
	case "A":
		c.ShowAll()
	case "a":
		cmd := m.openInput(inputAddColumn, "Label:type", "")
		return m, cmd
	case "esc", "C", "q":
		m.showControls = false
	}
	return m, nil
}

func (m browseModel) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	store := m.view.Store()
	snap := store.Snapshot()
	f := m.frame()
	row, col, ok := m.current(f)
	table := m.view.Renderers().Table

	key := msg.String()
	switch key {
	case "q":
		return m, tea.Quit
	case "1", "2", "3", "4":
		store.SetView(dbview.ViewModes()[key[0]-'1'])
	case "up", "k":
		m.row--
	case "down", "j":
		m.row++
	case "left", "h":
		m.col--
	case "right", "l":
		m.col++
	case "/":
		cmd := m.openInput(inputSearch, "search", snap.Search)
		return m, cmd
	case "esc":
		store.HandleKey(dbview.KeyEscape)
	case "f":
		store.ToggleFullscreen()
	case "n":
		table.NextPage()
		m.row = table.Page() * table.PageSize
	case "p":
		table.PrevPage()
		m.row = table.Page() * table.PageSize
	case "C":
		m.showControls = true
		m.ctrlIdx = 0
	case "a":
		cmd := m.openInput(inputAddColumn, "Label:type", "")
		return m, cmd
	case "+":
		cmd := m.openInput(inputNewRow, "title", "")
		return m, cmd
	case "c":
		store.ClearFilters()
	}
	if !ok {
		m.current(m.frame())
		return m, nil
	}

	switch key {
	case "s":
		if col.IsSortable() {
			store.ToggleSort(col.ID)
		}
	case "g":
		if snap.GroupField == col.ID {
			store.SetGroupField("")
		} else {
			store.SetGroupField(col.ID)
		}
	case "x":
		store.ToggleHidden(col.ID)
	case "<":
		if m.col > 0 {
			store.MoveColumn(col.ID, f.Columns[m.col-1].ID)
			m.col--
		}
	case ">":
		if m.col < len(f.Columns)-1 {
			before := ""
			if m.col+2 < len(f.Columns) {
				before = f.Columns[m.col+2].ID
			}
			store.MoveColumn(col.ID, before)
			m.col++
		}
	case "[", "]":
		m.resize(col, key == "]")
	case "enter":
		if m.view.OpenDetail(row.ID) != nil {
			m.focus = 0
		}
	case "e", " ":
		ed := dbview.NewCellEditor(col, row.Get(col.ID), func(v dbview.Value) {
			m.view.UpdateCell(row.ID, col.ID, v)
		})
		if key == " " && col.Type != dbview.TypeCheckbox {
			break
		}
		cmd := m.beginEdit(ed)
		return m, cmd
	case "d":
		m.view.DeleteRow(row.ID)
	case "F":
		if col.IsFilterable() {
			store.AddFilter(col.ID, dbview.OpIs, row.Get(col.ID).Stringify())
			m.row = 0
		}
	case "m":
		m.moveCard(f, row)
	case "z":
		m.toggleGroup(f, row, snap.View)
	case "v":
		m.showValues(col)
	}
	m.followPage()
	return m, nil
}

// resize drives the table's resize gesture by one step.
func (m *browseModel) resize(col dbview.ColumnDef, grow bool) {
	r := m.view.Renderers().Table.Resize
	x := r.Width(col)
	if !r.Begin(col, x) {
		return
	}
	dx := -resizeStep
	if grow {
		dx = resizeStep
	}
	hub := m.view.Hub()
	hub.Dispatch(dbview.PointerEvent{Kind: dbview.PointerMove, X: x + dx})
	hub.Dispatch(dbview.PointerEvent{Kind: dbview.PointerUp, X: x + dx})
}

// moveCard drops the cursor row into the next board lane.
func (m *browseModel) moveCard(f dbview.Frame, row dbview.Row) {
	lanes := m.view.Renderers().Board.Lanes(f)
	from := -1
	for i, lane := range lanes {
		for _, c := range lane.Cards {
			if c.RowID == row.ID {
				from = i
			}
		}
	}
	if from < 0 {
		return
	}
	for step := 1; step < len(lanes); step++ {
		next := lanes[(from+step)%len(lanes)]
		if next.Key == "" {
			continue
		}
		if m.view.MoveCard(row.ID, next.Key) {
			m.setStatus("moved to %s", next.Label)
		}
		return
	}
}

func (m *browseModel) toggleGroup(f dbview.Frame, row dbview.Row, mode dbview.ViewMode) {
	for _, g := range f.Groups {
		for _, r := range g.Rows {
			if r.ID == row.ID {
				m.view.Renderers().Collapse(mode).Toggle(g.Label)
				return
			}
		}
	}
}

func (m *browseModel) showValues(col dbview.ColumnDef) {
	counts := m.view.ValueCounts(col.ID)
	parts := make([]string, 0, 5)
	for i, c := range counts {
		if i == 5 {
			parts = append(parts, fmt.Sprintf("+%d more", len(counts)-5))
			break
		}
		parts = append(parts, fmt.Sprintf("%s %d", c.Label, c.Count))
	}
	m.setStatus("%s: %s", col.Label, strings.Join(parts, " · "))
}

// followPage keeps the table page on the cursor row.
func (m *browseModel) followPage() {
	t := m.view.Renderers().Table
	if m.view.Snapshot().GroupField != "" || t.PageSize <= 0 {
		return
	}
	m.current(m.frame())
	t.SetPage(m.row / t.PageSize)
}

func (m *browseModel) handleMouse(msg tea.MouseMsg) {
	if m.view.Snapshot().View != dbview.ViewTable || m.view.Detail() != nil {
		return
	}
	table := m.view.Renderers().Table
	hub := m.view.Hub()
	x := msg.X * dbview.PixelsPerCell
	y := msg.Y

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || y != m.headerY() {
			return
		}
		if col, ok := table.BorderAt(x); ok {
			table.Resize.Begin(col, x)
			return
		}
		if id := table.HeaderAt(x, y); id != "" {
			table.Reorder.Begin(id, x, y)
		}
	case tea.MouseActionMotion:
		if hub.Subscribers() > 0 {
			hub.Dispatch(dbview.PointerEvent{Kind: dbview.PointerMove, X: x, Y: y})
		}
	case tea.MouseActionRelease:
		if hub.Subscribers() > 0 {
			hub.Dispatch(dbview.PointerEvent{Kind: dbview.PointerUp, X: x, Y: y})
		}
	}
}

func (m browseModel) tabBar() string {
	snap := m.view.Snapshot()
	tabs := make([]string, 0, 4)
	for i, mode := range dbview.ViewModes() {
		label := fmt.Sprintf("%d %s", i+1, mode)
		if mode == snap.View || (snap.View == "" && mode == dbview.ViewTable) {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	var info []string
	if snap.Search != "" {
		info = append(info, fmt.Sprintf("search %q", snap.Search))
	}
	for _, r := range snap.Filters {
		info = append(info, fmt.Sprintf("%s %s %q", r.Field, r.Operator, r.Value))
	}
	if snap.GroupField != "" {
		info = append(info, "group "+snap.GroupField)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...) + "  " + barInfoStyle.Render(strings.Join(info, " · "))
}

func (m browseModel) pickerView() string {
	ed := m.editor
	opts := make([]string, 0, len(ed.Column.Options))
	for i, o := range ed.Column.Options {
		label := ed.Column.LabelFor(o.Value)
		if ed.Column.Type == dbview.TypeMultiSelect {
			mark := "○ "
			if ed.Selected(o.Value) {
				mark = "● "
			}
			label = mark + label
		}
		if i == m.pick {
			label = pickStyle.Render(label)
		}
		opts = append(opts, label)
	}
	return ed.Column.Label + ": " + strings.Join(opts, "  ")
}

func (m browseModel) View() string {
	var b strings.Builder
	snap := m.view.Snapshot()
	if !snap.Fullscreen {
		b.WriteString(m.tabBar() + "\n")
	}

	switch {
	case m.view.Detail() != nil:
		p := m.view.Detail()
		focus := ""
		if editors := p.Editors(); m.focus < len(editors) && m.focus >= 0 {
			focus = editors[m.focus].Column.ID
		}
		b.WriteString(p.Render(m.width, focus))
	case m.showControls:
		b.WriteString(m.view.Controls().Render(m.ctrlIdx))
	default:
		b.WriteString(m.view.Render(m.width, m.cursor()))
	}
	b.WriteString("\n")

	switch {
	case m.mode != inputNone:
		b.WriteString(m.input.View())
	case m.editor != nil:
		b.WriteString(m.pickerView())
	case m.failed:
		b.WriteString(errorStyle.Render(m.status))
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
	default:
		b.WriteString(barInfoStyle.Render("1-4 view · / search · s sort · g group · F filter · e edit · enter open · C columns · q quit"))
	}
	return b.String()
}

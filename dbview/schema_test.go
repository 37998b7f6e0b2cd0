package dbview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	mu      sync.Mutex
	columns map[string][]CustomColumnDef
	err     error
	created []NewColumn
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{columns: make(map[string][]CustomColumnDef)}
}

func (f *fakeRegistry) List(_ context.Context, stateKey string) ([]CustomColumnDef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]CustomColumnDef(nil), f.columns[stateKey]...), nil
}

func (f *fakeRegistry) Create(_ context.Context, stateKey string, col NewColumn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, col)
	f.columns[stateKey] = append(f.columns[stateKey], CustomColumnDef{
		ColID:    col.ColID,
		ColLabel: col.ColLabel,
		ColType:  col.ColType,
		ColOrder: len(f.columns[stateKey]),
	})
	return nil
}

func TestMergeColumns(t *testing.T) {
	static := []ColumnDef{
		{ID: "title", Label: "Title", Type: TypeText},
		{ID: "status", Label: "Status", Type: TypeSelect},
		{ID: "due", Label: "Due", Type: TypeDate},
	}
	custom := []ColumnDef{
		{ID: "status", Label: "Stage", Type: TypeBadge},
		{ID: "col_1", Label: "Notes", Type: TypeText},
	}

	first := MergeColumns(static, custom)
	second := MergeColumns(static, custom)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"title", "due", "status", "col_1"}, columnIDs(first))
	assert.Equal(t, "Stage", first[2].Label)

	assert.Equal(t, columnIDs(static), columnIDs(MergeColumns(static, nil)))
}

func TestCustomColumnDef(t *testing.T) {
	no := false
	d := CustomColumnDef{ColID: "c", ColLabel: "C", ColType: TypeNumber, ColWidth: 90}
	col := d.ColumnDef()
	assert.Equal(t, 90, col.Width)
	assert.True(t, col.IsEditable())
	assert.True(t, col.IsSortable())

	assert.False(t, ColumnDef{Editable: &no}.IsEditable())
	assert.Error(t, ColumnDef{ID: "x", Type: "spreadsheet"}.Validate())
}

func TestSchemaResolver(t *testing.T) {
	ctx := context.Background()
	static := []ColumnDef{{ID: "title", Label: "Title", Type: TypeText}}

	t.Run("fetch failure degrades to static", func(t *testing.T) {
		reg := newFakeRegistry()
		reg.err = errors.New("offline")
		r := NewSchemaResolver(static, "k", reg, nil)
		r.Refresh(ctx)
		assert.Equal(t, []string{"title"}, columnIDs(r.Columns()))
	})

	t.Run("custom columns keep registry order", func(t *testing.T) {
		reg := newFakeRegistry()
		reg.columns["k"] = []CustomColumnDef{
			{ColID: "b", ColLabel: "B", ColType: TypeText, ColOrder: 2},
			{ColID: "a", ColLabel: "A", ColType: TypeText, ColOrder: 1},
			{ColID: "bad", ColLabel: "Bad", ColType: "nope", ColOrder: 3},
		}
		r := NewSchemaResolver(static, "k", reg, nil)

		var published [][]ColumnDef
		r.Subscribe(func(c []ColumnDef) { published = append(published, c) })
		r.Refresh(ctx)

		assert.Equal(t, []string{"title", "b", "a"}, columnIDs(r.Columns()))
		require.Len(t, published, 1)
	})

	t.Run("state key change refetches", func(t *testing.T) {
		reg := newFakeRegistry()
		reg.columns["one"] = []CustomColumnDef{{ColID: "x", ColLabel: "X", ColType: TypeText}}
		r := NewSchemaResolver(static, "one", reg, nil)
		r.Refresh(ctx)
		assert.Len(t, r.Columns(), 2)

		r.SetStateKey(ctx, "two")
		assert.Equal(t, "two", r.StateKey())
		assert.Len(t, r.Columns(), 1)
	})
}

func TestHTTPRegistry(t *testing.T) {
	var posted NewColumn
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.EscapedPath() == "/api/custom-columns/tasks%2Fopen":
			_ = json.NewEncoder(w).Encode(CustomColumnList{Count: 1, Results: []CustomColumnDef{
				{ColID: "col_1", ColLabel: "Notes", ColType: TypeText, ColWidth: 120},
			}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/custom-columns/tasks":
			_ = json.NewDecoder(r.Body).Decode(&posted)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet && r.URL.Path == "/api/custom-columns/broken":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	reg := NewHTTPRegistry(srv.URL + "/")
	ctx := context.Background()

	defs, err := reg.List(ctx, "tasks/open")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Notes", defs[0].ColLabel)

	require.NoError(t, reg.Create(ctx, "tasks", NewColumn{ColID: "col_2", ColLabel: "Owner", ColType: TypeText}))
	assert.Equal(t, "col_2", posted.ColID)

	_, err = reg.List(ctx, "broken")
	assert.Error(t, err)

	r := NewSchemaResolver(nil, "broken", reg, nil)
	r.Refresh(ctx)
	assert.Empty(t, r.Columns())
}

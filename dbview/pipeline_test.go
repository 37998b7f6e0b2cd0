package dbview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func taskRows() []Row {
	return []Row{
		NewRow("1", map[string]any{"title": "Write docs", "status": "done", "priority": "P0", "estimate": 3}),
		NewRow("2", map[string]any{"title": "Fix login", "status": "open", "priority": "P0", "estimate": 8}),
		NewRow("3", map[string]any{"title": "Ship release", "status": "done", "priority": "P1", "estimate": 5}),
		NewRow("4", map[string]any{"title": "hello", "status": "done", "priority": "P0", "estimate": "n/a"}),
		NewRow("5", map[string]any{"title": "Plan sprint", "status": "open", "priority": "P1"}),
	}
}

var taskColumns = []ColumnDef{
	{ID: "title", Label: "Title", Type: TypeText},
	{ID: "status", Label: "Status", Type: TypeBadge, Options: []Option{
		{Value: "done", Label: "Done", Color: "green"},
		{Value: "open", Label: "Open", Color: "blue"},
	}},
	{ID: "priority", Label: "Priority", Type: TypeSelect},
	{ID: "estimate", Label: "Estimate", Type: TypeNumber},
}

func TestStableSort(t *testing.T) {
	rows := []Row{
		NewRow("1", map[string]any{"v": "a"}),
		NewRow("2", map[string]any{"v": "a"}),
		NewRow("3", map[string]any{"v": "a"}),
	}
	asc := SortState{Field: "v", Direction: SortAsc}
	desc := SortState{Field: "v", Direction: SortDesc}

	assert.Equal(t, []string{"1", "2", "3"}, ids(SortRows(rows, asc)))
	flipped := SortRows(SortRows(rows, desc), asc)
	assert.Equal(t, []string{"1", "2", "3"}, ids(flipped))
	assert.Equal(t, []string{"1", "2", "3"}, ids(SortRows(rows, desc)))
}

func TestSortRows(t *testing.T) {
	t.Run("numeric when both parse", func(t *testing.T) {
		rows := []Row{
			NewRow("a", map[string]any{"n": "10"}),
			NewRow("b", map[string]any{"n": "9"}),
			NewRow("c", map[string]any{"n": 100}),
		}
		assert.Equal(t, []string{"b", "a", "c"}, ids(SortRows(rows, SortState{Field: "n", Direction: SortAsc})))
		assert.Equal(t, []string{"c", "a", "b"}, ids(SortRows(rows, SortState{Field: "n", Direction: SortDesc})))
	})

	t.Run("dates compare as strings", func(t *testing.T) {
		rows := []Row{
			NewRow("a", map[string]any{"d": "2024-03-01"}),
			NewRow("b", map[string]any{"d": "2023-12-31"}),
			NewRow("c", map[string]any{"d": "2024-01-15"}),
		}
		assert.Equal(t, []string{"b", "c", "a"}, ids(SortRows(rows, SortState{Field: "d", Direction: SortAsc})))
	})

	t.Run("case insensitive", func(t *testing.T) {
		rows := []Row{
			NewRow("a", map[string]any{"s": "beta"}),
			NewRow("b", map[string]any{"s": "Alpha"}),
		}
		assert.Equal(t, []string{"b", "a"}, ids(SortRows(rows, SortState{Field: "s", Direction: SortAsc})))
	})

	t.Run("no field passes through", func(t *testing.T) {
		rows := taskRows()
		assert.Equal(t, ids(rows), ids(SortRows(rows, SortState{})))
	})
}

func TestFilterRows(t *testing.T) {
	rows := taskRows()

	t.Run("rules are ANDed", func(t *testing.T) {
		out := FilterRows(rows, []FilterRule{
			{ID: "f1", Field: "status", Operator: OpIs, Value: "done"},
			{ID: "f2", Field: "priority", Operator: OpIs, Value: "P0"},
		}, "", taskColumns)
		assert.Equal(t, []string{"1", "4"}, ids(out))
	})

	t.Run("empty rule value is ignored", func(t *testing.T) {
		out := FilterRows(rows, []FilterRule{{ID: "f", Field: "status", Operator: OpIs, Value: ""}}, "", taskColumns)
		assert.Len(t, out, len(rows))
	})

	t.Run("is_not and contains", func(t *testing.T) {
		out := FilterRows(rows, []FilterRule{{Field: "status", Operator: OpIsNot, Value: "DONE"}}, "", taskColumns)
		assert.Equal(t, []string{"2", "5"}, ids(out))
		out = FilterRows(rows, []FilterRule{{Field: "title", Operator: OpContains, Value: "LOG"}}, "", taskColumns)
		assert.Equal(t, []string{"2"}, ids(out))
	})

	t.Run("gt on non numeric value excludes the row", func(t *testing.T) {
		r := NewRow("x", map[string]any{"title": "hello"})
		assert.False(t, MatchesRule(r, FilterRule{Field: "title", Operator: OpGT, Value: "5"}))
	})

	t.Run("gt and lt", func(t *testing.T) {
		out := FilterRows(rows, []FilterRule{{Field: "estimate", Operator: OpGT, Value: "4"}}, "", taskColumns)
		assert.Equal(t, []string{"2", "3"}, ids(out))
		out = FilterRows(rows, []FilterRule{{Field: "estimate", Operator: OpLT, Value: "4abc"}}, "", taskColumns)
		assert.Equal(t, []string{"1"}, ids(out))
	})

	t.Run("search only looks at text columns", func(t *testing.T) {
		out := FilterRows(rows, nil, "  SHIP ", taskColumns)
		assert.Equal(t, []string{"3"}, ids(out))
		out = FilterRows(rows, nil, "P0", taskColumns)
		assert.Empty(t, out)
	})
}

func TestRunPipelineDoesNotMutateInput(t *testing.T) {
	rows := taskRows()
	before := ids(rows)
	out := RunPipeline(rows, Query{Sort: SortState{Field: "title", Direction: SortDesc}}, taskColumns)
	require.Len(t, out, 5)
	assert.Equal(t, before, ids(rows))
	assert.Equal(t, []string{"1", "3", "5", "4", "2"}, ids(out))
}

func TestGroupRows(t *testing.T) {
	t.Run("first encountered order", func(t *testing.T) {
		rows := []Row{
			NewRow("1", map[string]any{"g": "y"}),
			NewRow("2", map[string]any{"g": "x"}),
			NewRow("3", map[string]any{"g": "y"}),
		}
		groups := GroupRows(rows, "g", nil)
		require.Len(t, groups, 2)
		assert.Equal(t, "y", groups[0].Label)
		assert.Equal(t, []string{"1", "3"}, ids(groups[0].Rows))
		assert.Equal(t, "x", groups[1].Label)
		assert.Equal(t, []string{"2"}, ids(groups[1].Rows))
	})

	t.Run("option labels and ungrouped", func(t *testing.T) {
		rows := append(taskRows(), NewRow("6", map[string]any{"title": "orphan"}))
		groups := GroupRows(rows, "status", taskColumns)
		require.Len(t, groups, 3)
		assert.Equal(t, "Done", groups[0].Label)
		assert.Equal(t, "green", groups[0].Color)
		assert.Equal(t, "done", groups[0].Key)
		assert.Equal(t, "Open", groups[1].Label)
		assert.Equal(t, UngroupedLabel, groups[2].Label)
	})

	t.Run("no field", func(t *testing.T) {
		assert.Nil(t, GroupRows(taskRows(), "", taskColumns))
	})
}

func TestCollapseSet(t *testing.T) {
	c := CollapseSet{}
	c.Toggle("Done")
	assert.True(t, c.Collapsed("Done"))
	c.Toggle("Done")
	assert.False(t, c.Collapsed("Done"))
}

func TestCountValues(t *testing.T) {
	rows := []Row{
		NewRow("1", map[string]any{"tags": []string{"b", "a", "a"}}),
		NewRow("2", map[string]any{"tags": []string{"a"}}),
		NewRow("3", map[string]any{"tags": []string{"c"}}),
	}
	col := ColumnDef{ID: "tags", Type: TypeMultiSelect, Options: []Option{{Value: "a", Label: "Alpha"}}}

	byCount := CountValues(rows, col, "", "", true)
	require.Len(t, byCount, 3)
	assert.Equal(t, "a", byCount[0].Value)
	assert.Equal(t, "Alpha", byCount[0].Label)
	assert.Equal(t, 2, byCount[0].Count)
	assert.Equal(t, valueID("a"), byCount[0].ID)

	byLabel := CountValues(rows, col, "label", "", true)
	assert.Equal(t, []string{"Alpha", "b", "c"}, []string{byLabel[0].Label, byLabel[1].Label, byLabel[2].Label})
}

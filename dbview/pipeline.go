package dbview

import (
	"sort"
	"strings"
)

// Operator is a filter rule comparison.
type Operator string

const (
	OpIs       Operator = "is"
	OpIsNot    Operator = "is_not"
	OpContains Operator = "contains"
	OpGT       Operator = "gt"
	OpLT       Operator = "lt"
)

// Operators lists the filter operators in menu order.
func Operators() []Operator {
	return []Operator{OpIs, OpIsNot, OpContains, OpGT, OpLT}
}

// FilterRule is one predicate of the conjunctive filter set.
type FilterRule struct {
	ID       string   `json:"id"`
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// SortDir is the direction of a sort.
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// SortState is the active sort. An empty Field means unsorted.
type SortState struct {
	Field     string  `json:"field"`
	Direction SortDir `json:"direction"`
}

// Query bundles the inputs of the filter and sort pipeline.
type Query struct {
	Filters []FilterRule
	Search  string
	Sort    SortState
}

// RunPipeline applies search, then the filter rules, then a stable sort.
// The input slice is never modified.
func RunPipeline(rows []Row, q Query, columns []ColumnDef) []Row {
	out := FilterRows(rows, q.Filters, q.Search, columns)
	return SortRows(out, q.Sort)
}

// FilterRows keeps the rows that match the search text and every rule with a
// non-empty value, preserving input order.
func FilterRows(rows []Row, filters []FilterRule, search string, columns []ColumnDef) []Row {
	needle := strings.ToLower(strings.TrimSpace(search))
	var textCols []string
	if needle != "" {
		for _, c := range columns {
			if c.Type == TypeText {
				textCols = append(textCols, c.ID)
			}
		}
	}

	active := make([]FilterRule, 0, len(filters))
	for _, f := range filters {
		if f.Value != "" {
			active = append(active, f)
		}
	}

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if needle != "" && !matchesSearch(r, needle, textCols) {
			continue
		}
		if !matchesAll(r, active) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// MatchesSearch reports whether any text column of r contains search,
// case-insensitively. Blank search matches everything.
func MatchesSearch(r Row, search string, columns []ColumnDef) bool {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return true
	}
	var textCols []string
	for _, c := range columns {
		if c.Type == TypeText {
			textCols = append(textCols, c.ID)
		}
	}
	return matchesSearch(r, needle, textCols)
}

func matchesSearch(r Row, needle string, textCols []string) bool {
	for _, id := range textCols {
		if strings.Contains(strings.ToLower(r.Get(id).Stringify()), needle) {
			return true
		}
	}
	return false
}

func matchesAll(r Row, rules []FilterRule) bool {
	for _, rule := range rules {
		if !MatchesRule(r, rule) {
			return false
		}
	}
	return true
}

// MatchesRule evaluates a single rule. gt and lt always compare numerically
// and fail when either side does not parse. Unknown operators match.
func MatchesRule(r Row, rule FilterRule) bool {
	cell := strings.ToLower(r.Get(rule.Field).Stringify())
	want := strings.ToLower(rule.Value)
	switch rule.Operator {
	case OpIs:
		return cell == want
	case OpIsNot:
		return cell != want
	case OpContains:
		return strings.Contains(cell, want)
	case OpGT, OpLT:
		a, okA := ParseFloatPrefix(cell)
		b, okB := ParseFloatPrefix(want)
		if !okA || !okB {
			return false
		}
		if rule.Operator == OpGT {
			return a > b
		}
		return a < b
	}
	return true
}

// SortRows returns a stably sorted copy of rows. Values that both parse as
// numbers compare numerically; everything else compares case-insensitively.
func SortRows(rows []Row, s SortState) []Row {
	out := append([]Row(nil), rows...)
	if s.Field == "" {
		return out
	}
	keys := make([]string, len(out))
	for i, r := range out {
		keys[i] = r.Get(s.Field).Stringify()
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	desc := s.Direction == SortDesc
	sort.SliceStable(idx, func(i, j int) bool {
		c := CompareValues(keys[idx[i]], keys[idx[j]])
		if desc {
			return c > 0
		}
		return c < 0
	})
	sorted := make([]Row, len(out))
	for i, k := range idx {
		sorted[i] = out[k]
	}
	return sorted
}

// CompareValues orders two stringified cells.
func CompareValues(a, b string) int {
	if na, ok := parseFullFloat(a); ok {
		if nb, ok := parseFullFloat(b); ok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

package dbview

import (
	"fmt"
	"sort"
	"strings"
)

// ValueCount is one distinct cell value with the number of rows holding it.
type ValueCount struct {
	ID    string `json:"id"`
	Value string `json:"value"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// CountValues aggregates the distinct values of a column across rows. List
// cells contribute each member once per row. sortBy is "count" (default) or
// "label"; order defaults to desc for count and asc for label.
func CountValues(rows []Row, col ColumnDef, sortBy, order string, ignoreCase bool) []ValueCount {
	counts := make(map[string]int)
	var seenOrder []string
	for _, r := range rows {
		v := r.Get(col.ID)
		var parts []string
		if v.Kind() == KindList {
			parts = v.Items()
		} else {
			parts = []string{v.Stringify()}
		}
		rowSeen := make(map[string]bool, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" || rowSeen[p] {
				continue
			}
			rowSeen[p] = true
			if _, ok := counts[p]; !ok {
				seenOrder = append(seenOrder, p)
			}
			counts[p]++
		}
	}

	values := make([]ValueCount, 0, len(counts))
	for _, v := range seenOrder {
		values = append(values, ValueCount{
			ID:    valueID(v),
			Value: v,
			Label: col.LabelFor(v),
			Count: counts[v],
		})
	}
	return sortValueCounts(values, sortBy, order, ignoreCase)
}

func valueID(value string) string {
	hash := uint32(0)
	for _, char := range value {
		hash = hash*31 + uint32(char)
	}
	return fmt.Sprintf("val-%d", hash)
}

func compareLabels(a, b string, ignoreCase bool) int {
	if ignoreCase {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	return strings.Compare(a, b)
}

func sortValueCounts(values []ValueCount, sortBy, order string, ignoreCase bool) []ValueCount {
	sortBy = strings.ToLower(sortBy)
	order = strings.ToLower(order)
	if sortBy != "label" {
		sortBy = "count"
	}
	if order != "asc" && order != "desc" {
		if sortBy == "count" {
			order = "desc"
		} else {
			order = "asc"
		}
	}

	sorted := append([]ValueCount(nil), values...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if sortBy == "count" {
			if a.Count != b.Count {
				if order == "asc" {
					return a.Count < b.Count
				}
				return a.Count > b.Count
			}
			return compareLabels(a.Label, b.Label, ignoreCase) < 0
		}
		c := compareLabels(a.Label, b.Label, ignoreCase)
		if c != 0 {
			if order == "asc" {
				return c < 0
			}
			return c > 0
		}
		return a.Count > b.Count
	})
	return sorted
}

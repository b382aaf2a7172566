// Package query implements in-memory filtering, sorting, pagination and
// aggregation over full-collection snapshots. The backing store cannot do
// any of this natively.
package query

import (
	"math"
	"sort"
	"strings"
)

type Predicate[T any] func(T) bool

// Filter keeps the items matching every predicate (logical AND).
func Filter[T any](items []T, preds ...Predicate[T]) []T {
	if len(preds) == 0 {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		ok := true
		for _, p := range preds {
			if !p(it) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, it)
		}
	}
	return out
}

type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// SortStable orders items by cmp, descending when ord is Desc. Ties keep
// snapshot order.
func SortStable[T any](items []T, cmp func(a, b T) int, ord Order) {
	if cmp == nil {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		c := cmp(items[i], items[j])
		if ord == Desc {
			return c > 0
		}
		return c < 0
	})
}

// CompareStrings is a case-insensitive three-way string compare.
func CompareStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func CompareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ContainsFold reports whether s contains substr, case-insensitively.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Paginate slices one page out of the full ordered set. Out-of-range page
// and limit clamp to 1; concatenating pages 1..TotalPages reproduces the
// input exactly once.
func Paginate[T any](items []T, page, limit int) Page[T] {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}

	total := len(items)
	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return Page[T]{
		Items: items[start:end],
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1 && total > 0,
		},
	}
}

// Mean averages the extracted values over the filtered (not paginated) set.
// Empty input yields 0.
func Mean[T any](items []T, value func(T) float64) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range items {
		sum += value(it)
	}
	return sum / float64(len(items))
}

func Sum[T any](items []T, value func(T) float64) float64 {
	var sum float64
	for _, it := range items {
		sum += value(it)
	}
	return sum
}

// CountBy groups the set by key and counts each group.
func CountBy[T any, K comparable](items []T, key func(T) K) map[K]int {
	out := make(map[K]int)
	for _, it := range items {
		out[key(it)]++
	}
	return out
}

// Round1 rounds to one decimal place (review averages).
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

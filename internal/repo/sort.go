package repo

import (
	"time"

	"go-kv-commerce/internal/query"
)

// Default list sort is createdAt descending; callers flip with "asc".
func sortOrder(s string) query.Order {
	if s == string(query.Asc) {
		return query.Asc
	}
	return query.Desc
}

func defaultPage(p int) int {
	if p < 1 {
		return 1
	}
	return p
}

func defaultLimit(l int) int {
	if l < 1 {
		return 20
	}
	return l
}

// compareTimePtr treats nil as the zero time, so records missing the field
// sort together at the bottom of a descending order.
func compareTimePtr(a, b *time.Time) int {
	var ta, tb time.Time
	if a != nil {
		ta = *a
	}
	if b != nil {
		tb = *b
	}
	return ta.Compare(tb)
}

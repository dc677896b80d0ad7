// Package store holds the storefront repositories. Every read goes through the
// shared cache; every mutation invalidates the namespaces it affects.
//
// Values returned from cached reads are shared between callers and must be treated
// as read-only.
package store

import "github.com/kalakari/storefront/internal/domain"

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

func newPage[T any](items []T, total, page, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Page[T]{Items: items, Total: total, Page: page, Limit: limit, TotalPages: pages}
}

// Pagination is a 1-based page and a page size.
type Pagination struct {
	Page  int
	Limit int
}

// Normalize clamps the page to at least 1 and the limit to [1, MaxPageSize],
// defaulting to DefaultPageSize.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = domain.DefaultPageSize
	}
	if p.Limit > domain.MaxPageSize {
		p.Limit = domain.MaxPageSize
	}
	return p
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.Limit }

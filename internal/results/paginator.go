// Package results filters and paginates error records for display.
package results

import (
	"slices"

	"github.com/jaki95/check-engine/internal/domain"
)

// All matches every category or error type.
const All = "all"

// DefaultPageSize is used when a caller passes a non-positive page size.
const DefaultPageSize = 20

// Filter selects records by category and error type. Empty or "all" fields
// match everything.
type Filter struct {
	Category  string `form:"category" json:"category,omitempty"`
	ErrorType string `form:"errorType" json:"errorType,omitempty"`
}

// Match reports whether r passes both filters.
func (f Filter) Match(r domain.ErrorRecord) bool {
	if !matchAll(f.Category) && string(r.Category) != f.Category {
		return false
	}
	if !matchAll(f.ErrorType) && r.ErrorType != f.ErrorType {
		return false
	}
	return true
}

func matchAll(v string) bool {
	return v == "" || v == All
}

// Apply returns the matching records in input order. The result never
// shares its backing array with records.
func (f Filter) Apply(records []domain.ErrorRecord) []domain.ErrorRecord {
	if matchAll(f.Category) && matchAll(f.ErrorType) {
		return slices.Clone(records)
	}
	out := make([]domain.ErrorRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Page is one page of filtered records.
type Page struct {
	Records    []domain.ErrorRecord `json:"records"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
	TotalPages int                  `json:"totalPages"`
	Total      int                  `json:"total"`
}

// Paginate filters records and returns the requested page. The page number is
// clamped to [1, max(totalPages, 1)].
func Paginate(records []domain.ErrorRecord, filter Filter, page, pageSize int) Page {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	filtered := filter.Apply(records)
	total := len(filtered)
	totalPages := (total + pageSize - 1) / pageSize

	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page{
		Records:    slices.Clip(filtered[start:end]),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		Total:      total,
	}
}

// ErrorTypes returns the distinct error types in first-seen order, limited to
// category unless it is empty or "all".
func ErrorTypes(records []domain.ErrorRecord, category string) []string {
	seen := make(map[string]bool)
	var types []string
	for _, r := range records {
		if !matchAll(category) && string(r.Category) != category {
			continue
		}
		if seen[r.ErrorType] {
			continue
		}
		seen[r.ErrorType] = true
		types = append(types, r.ErrorType)
	}
	return types
}

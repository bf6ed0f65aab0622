// Package aggregate indexes error records by cell and counts them by category.
package aggregate

import (
	"slices"

	"github.com/jaki95/check-engine/internal/domain"
)

// CellErrorMap maps a cell to its error records in input order. It is always
// derived from an error list by Aggregate and never edited in place.
type CellErrorMap struct {
	cells map[domain.CellKey][]domain.ErrorRecord
	keys  []domain.CellKey
}

// Get returns a copy of the records for key, or nil.
func (m CellErrorMap) Get(key domain.CellKey) []domain.ErrorRecord {
	return slices.Clone(m.cells[key])
}

// Has reports whether any record affects key.
func (m CellErrorMap) Has(key domain.CellKey) bool {
	_, ok := m.cells[key]
	return ok
}

// Keys returns the cell keys in first-seen order.
func (m CellErrorMap) Keys() []domain.CellKey {
	out := make([]domain.CellKey, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of distinct cells.
func (m CellErrorMap) Len() int {
	return len(m.keys)
}

// Size returns the number of records across all cells.
func (m CellErrorMap) Size() int {
	n := 0
	for _, recs := range m.cells {
		n += len(recs)
	}
	return n
}

// Counts holds the number of records per category.
type Counts struct {
	Format       int `json:"formatErrors"`
	Resource     int `json:"resourceErrors"`
	Content      int `json:"contentErrors"`
	ImageQuality int `json:"imageQualityErrors"`
}

// Total returns the sum over all categories.
func (c Counts) Total() int {
	return c.Format + c.Resource + c.Content + c.ImageQuality
}

// Of returns the count for a single category.
func (c Counts) Of(cat domain.Category) int {
	switch cat {
	case domain.CategoryFormat:
		return c.Format
	case domain.CategoryResource:
		return c.Resource
	case domain.CategoryContent:
		return c.Content
	case domain.CategoryImageQuality:
		return c.ImageQuality
	}
	return 0
}

// Aggregation is the output of Aggregate.
type Aggregation struct {
	Cells  CellErrorMap
	Counts Counts
}

// Aggregate indexes records in a single pass. Records without both a row
// index and a column are counted but left out of the cell map. The input is
// never modified and the same input always yields the same output.
func Aggregate(records []domain.ErrorRecord) Aggregation {
	agg := Aggregation{
		Cells: CellErrorMap{cells: make(map[domain.CellKey][]domain.ErrorRecord)},
	}

	for _, r := range records {
		if key, ok := r.CellKey(); ok {
			if _, seen := agg.Cells.cells[key]; !seen {
				agg.Cells.keys = append(agg.Cells.keys, key)
			}
			agg.Cells.cells[key] = append(agg.Cells.cells[key], r)
		}

		switch r.Category {
		case domain.CategoryFormat:
			agg.Counts.Format++
		case domain.CategoryResource:
			agg.Counts.Resource++
		case domain.CategoryContent:
			agg.Counts.Content++
		case domain.CategoryImageQuality:
			agg.Counts.ImageQuality++
		}
	}

	return agg
}

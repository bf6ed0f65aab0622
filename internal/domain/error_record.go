package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Category classifies an error record. It drives filtering and counting.
type Category string

const (
	CategoryFormat       Category = "format"
	CategoryResource     Category = "resource"
	CategoryContent      Category = "content"
	CategoryImageQuality Category = "image_quality"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryFormat,
	CategoryResource,
	CategoryContent,
	CategoryImageQuality,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryFormat, CategoryResource, CategoryContent, CategoryImageQuality:
		return true
	}
	return false
}

// LocationLen is the number of leading tuple elements read as x, y, w, h.
const LocationLen = 4

// Location is one [x, y, w, h, ...] tuple from details.locations.
// Tuples shorter than four elements are kept as-is and skipped on expansion.
type Location []float64

// Details holds category-specific extra data attached to an error record.
type Details struct {
	Locations []Location `json:"locations,omitempty"`
}

// UnmarshalJSON decodes locations leniently. Only the first LocationLen
// elements of a tuple are read; anything after them is ignored. A tuple that
// is not an array, or whose leading elements are not numbers, becomes an
// empty tuple instead of failing the whole record.
func (d *Details) UnmarshalJSON(data []byte) error {
	var raw struct {
		Locations json.RawMessage `json:"locations"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	d.Locations = nil

	var tuples []json.RawMessage
	if len(raw.Locations) == 0 || json.Unmarshal(raw.Locations, &tuples) != nil {
		return nil
	}

	for _, t := range tuples {
		var values []json.RawMessage
		if json.Unmarshal(t, &values) != nil {
			d.Locations = append(d.Locations, Location{})
			continue
		}
		n := min(len(values), LocationLen)
		loc := make(Location, 0, n)
		for _, v := range values[:n] {
			f, ok := parseNumber(v)
			if !ok {
				loc = nil
				break
			}
			loc = append(loc, f)
		}
		d.Locations = append(d.Locations, loc)
	}
	return nil
}

func parseNumber(v json.RawMessage) (float64, bool) {
	if string(bytes.TrimSpace(v)) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// ErrorRecord is one reported defect or validation failure.
// Only ErrorType, Category and Message are required.
type ErrorRecord struct {
	RowIndex       *int     `json:"rowIndex,omitempty"`
	Column         *string  `json:"column,omitempty"`
	Value          *string  `json:"value,omitempty"`
	ErrorType      string   `json:"errorType"`
	Category       Category `json:"category"`
	Message        string   `json:"message"`
	LocationX      *float64 `json:"locationX,omitempty"`
	LocationY      *float64 `json:"locationY,omitempty"`
	LocationWidth  *float64 `json:"locationWidth,omitempty"`
	LocationHeight *float64 `json:"locationHeight,omitempty"`
	HiddenFileName *string  `json:"hiddenFileName,omitempty"`
	Details        *Details `json:"details,omitempty"`
	ExtractedValue *string  `json:"extractedValue,omitempty"`
}

// UnmarshalJSON validates the record at the boundary.
func (r *ErrorRecord) UnmarshalJSON(data []byte) error {
	type plain ErrorRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	rec := ErrorRecord(p)
	if err := rec.Validate(); err != nil {
		return err
	}
	*r = rec
	return nil
}

// Validate checks the required fields.
func (r ErrorRecord) Validate() error {
	if !r.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidRecord, r.Category)
	}
	if r.ErrorType == "" {
		return fmt.Errorf("%w: errorType is required", ErrInvalidRecord)
	}
	if r.Message == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidRecord)
	}
	return nil
}

// CellKey returns the cell this record belongs to. ok is false for records
// lacking a row index or column, e.g. whole-resource errors.
func (r ErrorRecord) CellKey() (CellKey, bool) {
	if r.RowIndex == nil || r.Column == nil {
		return CellKey{}, false
	}
	return CellKey{RowIndex: *r.RowIndex, Column: *r.Column}, true
}

// HasLocation reports whether the record carries a single direct location.
func (r ErrorRecord) HasLocation() bool {
	return r.LocationX != nil || r.LocationY != nil
}

// CellKey identifies one (row, column) cell of the checked data sheet.
type CellKey struct {
	RowIndex int
	Column   string
}

func (k CellKey) String() string {
	return fmt.Sprintf("%d_%s", k.RowIndex, k.Column)
}

// Ptr returns a pointer to v. Handy for building optional record fields.
func Ptr[T any](v T) *T {
	return &v
}

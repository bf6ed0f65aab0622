// Package annotation turns error records into single-instance, located
// annotations that can be drawn on an image.
package annotation

import "github.com/jaki95/check-engine/internal/domain"

// DefaultBoxSize is used for a direct location that lacks width or height.
const DefaultBoxSize = 100.0

// minTupleLen is the number of leading elements read from a location tuple.
const minTupleLen = domain.LocationLen

// Expander expands error records into annotations.
type Expander struct {
	// DefaultSize replaces a missing locationWidth/locationHeight.
	DefaultSize float64
}

// NewExpander returns an Expander using DefaultBoxSize.
func NewExpander() *Expander {
	return &Expander{DefaultSize: DefaultBoxSize}
}

// Expand emits, in input order, one annotation per usable details.locations
// tuple, or one annotation for a record with a direct location. Records with
// neither are skipped, as are tuples shorter than four elements.
func (e *Expander) Expand(records []domain.ErrorRecord) []domain.Annotation {
	out := make([]domain.Annotation, 0, len(records))
	for _, r := range records {
		out = append(out, e.expandOne(r)...)
	}
	return out
}

func (e *Expander) expandOne(r domain.ErrorRecord) []domain.Annotation {
	if r.Details != nil && len(r.Details.Locations) > 0 {
		var out []domain.Annotation
		for _, loc := range r.Details.Locations {
			if len(loc) < minTupleLen {
				continue
			}
			a := base(r)
			a.X, a.Y, a.W, a.H = loc[0], loc[1], loc[2], loc[3]
			out = append(out, a)
		}
		return out
	}

	if !r.HasLocation() {
		return nil
	}

	a := base(r)
	a.X = deref(r.LocationX, 0)
	a.Y = deref(r.LocationY, 0)
	a.W = deref(r.LocationWidth, e.defaultSize())
	a.H = deref(r.LocationHeight, e.defaultSize())
	return []domain.Annotation{a}
}

func (e *Expander) defaultSize() float64 {
	if e.DefaultSize <= 0 {
		return DefaultBoxSize
	}
	return e.DefaultSize
}

func base(r domain.ErrorRecord) domain.Annotation {
	return domain.Annotation{
		RowIndex:       r.RowIndex,
		Column:         r.Column,
		HiddenFileName: r.HiddenFileName,
		Value:          r.Value,
		ErrorType:      r.ErrorType,
		Category:       r.Category,
		Message:        r.Message,
	}
}

func deref(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// Records converts annotations back into flat error records.
func Records(annotations []domain.Annotation) []domain.ErrorRecord {
	out := make([]domain.ErrorRecord, len(annotations))
	for i, a := range annotations {
		out[i] = a.Record()
	}
	return out
}

// ForFile returns the annotations that belong to one hidden image file.
func ForFile(annotations []domain.Annotation, hiddenFileName string) []domain.Annotation {
	var out []domain.Annotation
	for _, a := range annotations {
		if a.HiddenFileName != nil && *a.HiddenFileName == hiddenFileName {
			out = append(out, a)
		}
	}
	return out
}

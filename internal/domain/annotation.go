package domain

// Annotation is a single, concretely located defect marker derived from
// exactly one ErrorRecord. Coordinates are in natural image pixels.
type Annotation struct {
	RowIndex       *int     `json:"rowIndex,omitempty"`
	Column         *string  `json:"column,omitempty"`
	HiddenFileName *string  `json:"hiddenFileName,omitempty"`
	Value          *string  `json:"value,omitempty"`
	ErrorType      string   `json:"errorType"`
	Category       Category `json:"category"`
	Message        string   `json:"message"`
	X              float64  `json:"x"`
	Y              float64  `json:"y"`
	W              float64  `json:"w"`
	H              float64  `json:"h"`
}

// Record returns the flat error record equivalent to a. It carries a direct
// location and no details, so expanding it yields a again.
func (a Annotation) Record() ErrorRecord {
	return ErrorRecord{
		RowIndex:       a.RowIndex,
		Column:         a.Column,
		Value:          a.Value,
		ErrorType:      a.ErrorType,
		Category:       a.Category,
		Message:        a.Message,
		LocationX:      Ptr(a.X),
		LocationY:      Ptr(a.Y),
		LocationWidth:  Ptr(a.W),
		LocationHeight: Ptr(a.H),
		HiddenFileName: a.HiddenFileName,
	}
}

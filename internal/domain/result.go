package domain

import (
	"encoding/json"
	"log/slog"
)

// Result is the final outcome of a completed check.
type Result struct {
	Errors []ErrorRecord `json:"errors"`

	// ServiceUnavailable marks a soft failure: some constituent service was
	// degraded, but Errors is still valid and should be rendered.
	ServiceUnavailable  bool     `json:"serviceUnavailable,omitempty"`
	UnavailableServices []string `json:"unavailableServices,omitempty"`

	// Summary holds per-category error totals as reported by the checker.
	Summary map[Category]int `json:"summary,omitempty"`
}

// Advisory returns the banner text for a degraded result, or "" if none.
func (r *Result) Advisory() string {
	if r == nil || !r.ServiceUnavailable {
		return ""
	}
	if len(r.UnavailableServices) == 0 {
		return "some check services were unavailable; results may be incomplete"
	}
	msg := "unavailable services:"
	for i, s := range r.UnavailableServices {
		if i > 0 {
			msg += ","
		}
		msg += " " + s
	}
	return msg + "; results may be incomplete"
}

// UnmarshalJSON decodes the error list record by record. A record that fails
// validation is logged and dropped; the rest of the result is kept.
func (r *Result) UnmarshalJSON(data []byte) error {
	type plain Result
	var raw struct {
		plain
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Result(raw.plain)
	r.Errors = nil
	if raw.Errors == nil {
		return nil
	}
	r.Errors = make([]ErrorRecord, 0, len(raw.Errors))
	for i, item := range raw.Errors {
		var rec ErrorRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			slog.Warn("Dropping malformed error record", "index", i, "error", err)
			continue
		}
		r.Errors = append(r.Errors, rec)
	}
	return nil
}

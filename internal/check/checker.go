// Package check runs checks on the service side and reports their progress
// into the job manager.
package check

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jaki95/check-engine/internal/domain"
)

// ErrInvalidRules is returned for a rule configuration that cannot be parsed.
var ErrInvalidRules = errors.New("invalid rule config")

// Request identifies what to check.
type Request struct {
	TaskID     string
	ProjectID  string
	RuleConfig json.RawMessage
}

// Step reports one batch of checked items in a category.
type Step struct {
	Category  domain.Category
	Processed int
	Errors    int
	Message   string
}

// Checker performs the actual checks. Run calls emit after every batch and
// must stop when emit returns an error.
type Checker interface {
	Totals(ctx context.Context, req Request) (map[domain.Category]int, error)
	Run(ctx context.Context, req Request, emit func(Step) error) (*domain.Result, error)
}

// Rules is the part of a rule configuration the engine understands.
type Rules struct {
	// Categories limits the check to these categories; empty means all.
	Categories []domain.Category `json:"categories,omitempty"`
}

// ParseRules decodes a rule configuration. Null or empty input selects
// every category.
func ParseRules(raw json.RawMessage) (Rules, error) {
	var rules Rules
	if len(raw) == 0 || string(raw) == "null" {
		return rules, nil
	}
	if err := json.Unmarshal(raw, &rules); err != nil {
		return Rules{}, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	for _, c := range rules.Categories {
		if !c.Valid() {
			return Rules{}, fmt.Errorf("%w: unknown category %q", ErrInvalidRules, c)
		}
	}
	return rules, nil
}

// Enabled reports whether a category is checked.
func (r Rules) Enabled(c domain.Category) bool {
	if len(r.Categories) == 0 {
		return true
	}
	for _, enabled := range r.Categories {
		if enabled == c {
			return true
		}
	}
	return false
}

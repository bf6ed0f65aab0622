// Package session holds the state of one check session: the rule
// configuration it was started with and everything derived from its result.
package session

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/jaki95/check-engine/internal/aggregate"
	"github.com/jaki95/check-engine/internal/annotation"
	"github.com/jaki95/check-engine/internal/domain"
	"github.com/jaki95/check-engine/internal/results"
)

// Session is passed to the components that read or replace check results.
// Derived data is only ever rebuilt from the error list in ApplyResult.
type Session struct {
	projectID  string
	ruleConfig json.RawMessage
	expander   *annotation.Expander

	mu          sync.RWMutex
	result      *domain.Result
	aggregation aggregate.Aggregation
	annotations []domain.Annotation
}

// Option configures a Session.
type Option func(*Session)

// WithExpander overrides the annotation expander.
func WithExpander(e *annotation.Expander) Option {
	return func(s *Session) {
		s.expander = e
	}
}

// New creates an empty session for a project.
func New(projectID string, ruleConfig json.RawMessage, opts ...Option) *Session {
	s := &Session{
		projectID:   projectID,
		ruleConfig:  ruleConfig,
		expander:    annotation.NewExpander(),
		aggregation: aggregate.Aggregate(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProjectID returns the project the session checks.
func (s *Session) ProjectID() string {
	return s.projectID
}

// RuleConfig returns the rule configuration the session was created with.
func (s *Session) RuleConfig() json.RawMessage {
	return s.ruleConfig
}

// ApplyResult derives the cell map, counters and annotations from result and
// commits them together. A nil result clears the session.
func (s *Session) ApplyResult(result *domain.Result) {
	var records []domain.ErrorRecord
	if result != nil {
		records = result.Errors
	}
	agg := aggregate.Aggregate(records)
	anns := s.expander.Expand(records)

	s.mu.Lock()
	s.result = result
	s.aggregation = agg
	s.annotations = anns
	s.mu.Unlock()
}

// Result returns the last applied result, or nil.
func (s *Session) Result() *domain.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Errors returns a copy of the current error list.
func (s *Session) Errors() []domain.ErrorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return nil
	}
	return slices.Clone(s.result.Errors)
}

// Aggregation returns the cell map and counters of the current errors.
func (s *Session) Aggregation() aggregate.Aggregation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aggregation
}

// Cell returns the errors affecting one cell.
func (s *Session) Cell(key domain.CellKey) []domain.ErrorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aggregation.Cells.Get(key)
}

// Annotations returns a copy of every annotation of the current errors.
func (s *Session) Annotations() []domain.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.annotations)
}

// AnnotationsFor returns the annotations drawn on one image file.
func (s *Session) AnnotationsFor(hiddenFileName string) []domain.Annotation {
	return annotation.ForFile(s.Annotations(), hiddenFileName)
}

// Advisory returns the degraded-service banner text, or "".
func (s *Session) Advisory() string {
	return s.Result().Advisory()
}

// Page filters and paginates the current errors.
func (s *Session) Page(filter results.Filter, page, pageSize int) results.Page {
	return results.Paginate(s.Errors(), filter, page, pageSize)
}

// ErrorTypes returns the error types present in a category.
func (s *Session) ErrorTypes(category string) []string {
	return results.ErrorTypes(s.Errors(), category)
}

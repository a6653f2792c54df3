package models

// RuleSeverity defines rule violation severity
type RuleSeverity string

const (
	SeverityBlocking RuleSeverity = "blocking"
	SeverityWarning  RuleSeverity = "warning"
)

// RuleScope defines the scope of rule application
type RuleScope string

const (
	ScopeEntity RuleScope = "entity"
	ScopeBatch  RuleScope = "batch"
)

// ValidationRule is a named, pure predicate over a single entity or the full
// batch. Entity rules supply Check; batch rules supply BatchCheck. Rules must
// not depend on state outside the current batch and registry.
type ValidationRule struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Severity    RuleSeverity `json:"severity"`
	Scope       RuleScope    `json:"scope"`

	// Check returns ok=false with a message when the entity violates the rule.
	Check func(e *Entity) (ok bool, message string) `json:"-"`

	// BatchCheck returns one violation per offending record, or a single
	// violation with an empty record key for batch-wide conditions.
	BatchCheck func(entities []*Entity) []Violation `json:"-"`
}

// Violation is one rule failure recorded in a DQ report.
type Violation struct {
	Rule      string       `json:"rule"`
	Severity  RuleSeverity `json:"severity"`
	RecordKey string       `json:"record_key,omitempty"`
	Message   string       `json:"message"`
}

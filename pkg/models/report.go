package models

import "time"

// DQReport is the per-batch outcome of the data quality gate. The verdict is
// a pure function of the violation set: PASSED iff no blocking violations.
type DQReport struct {
	ID            string        `json:"id"`
	Entity        string        `json:"entity"`
	TotalRecords  int           `json:"total_records"`
	PassedRecords int           `json:"passed_records"`
	Violations    []Violation   `json:"violations"`
	Passed        bool          `json:"passed"`
	CheckedAt     time.Time     `json:"checked_at"`
	Duration      time.Duration `json:"duration"`
}

// BlockingCount returns the number of blocking violations in the report.
func (r *DQReport) BlockingCount() int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == SeverityBlocking {
			n++
		}
	}
	return n
}

// WarningCount returns the number of warning violations in the report.
func (r *DQReport) WarningCount() int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

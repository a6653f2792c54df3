package quality

import (
	"fmt"
	"time"

	"github.com/travelytics/medallion/pkg/models"
)

// Run-scoped rule constructors. These build batch-level rules whose inputs
// (reference key sets, previous run counts, clocks) are only known at run
// time; the coordinator passes them to Evaluate as extra rules so the gate
// itself stays pure over the current batch.

// FreshnessRule warns when the newest record in the batch is older than the
// given window.
func FreshnessRule(window time.Duration, now func() time.Time) *models.ValidationRule {
	return &models.ValidationRule{
		Name:        "data_freshness",
		Description: fmt.Sprintf("newest record must be younger than %s", window),
		Severity:    models.SeverityWarning,
		Scope:       models.ScopeBatch,
		BatchCheck: func(entities []*models.Entity) []models.Violation {
			if len(entities) == 0 {
				return nil
			}
			var newest time.Time
			for _, e := range entities {
				if e.IngestedAt.After(newest) {
					newest = e.IngestedAt
				}
			}
			age := now().Sub(newest)
			if age <= window {
				return nil
			}
			return []models.Violation{{
				Message: fmt.Sprintf("newest record is %.1f hours old", age.Hours()),
			}}
		},
	}
}

// MinRowCountRule blocks publication when the batch shrank below the given
// ratio of the previous run's row count.
func MinRowCountRule(previousCount int, ratio float64) *models.ValidationRule {
	return &models.ValidationRule{
		Name:        "row_count_vs_previous_run",
		Description: fmt.Sprintf("row count must be at least %.0f%% of previous run", ratio*100),
		Severity:    models.SeverityBlocking,
		Scope:       models.ScopeBatch,
		BatchCheck: func(entities []*models.Entity) []models.Violation {
			if previousCount <= 0 {
				return nil
			}
			minimum := ratio * float64(previousCount)
			if float64(len(entities)) >= minimum {
				return nil
			}
			return []models.Violation{{
				Message: fmt.Sprintf("row count %d below minimum %.0f (previous run had %d)",
					len(entities), minimum, previousCount),
			}}
		},
	}
}

// ReferentialIntegrityRule warns for every record whose foreign key field is
// absent from the referenced entity's key set. Orphans are warnings, not
// blockers: they still aggregate, matching the warehouse behavior.
func ReferentialIntegrityRule(name, field string, referencedKeys map[string]struct{}) *models.ValidationRule {
	return &models.ValidationRule{
		Name:        name,
		Description: fmt.Sprintf("%s must reference an existing record", field),
		Severity:    models.SeverityWarning,
		Scope:       models.ScopeBatch,
		BatchCheck: func(entities []*models.Entity) []models.Violation {
			var violations []models.Violation
			for _, e := range entities {
				fk, ok := e.String(field)
				if !ok || fk == "" {
					continue
				}
				if _, exists := referencedKeys[fk]; !exists {
					violations = append(violations, models.Violation{
						RecordKey: e.Key,
						Message:   fmt.Sprintf("%s %q has no referenced record", field, fk),
					})
				}
			}
			return violations
		},
	}
}

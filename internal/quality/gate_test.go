package quality

import (
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelytics/medallion/internal/registry"
	apperrors "github.com/travelytics/medallion/pkg/errors"
	"github.com/travelytics/medallion/pkg/models"
)

func paymentRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New(logrus.New())
	require.NoError(t, r.RegisterSchema(&models.Schema{
		Entity:     "payment",
		PrimaryKey: []string{"id"},
		Fields: []models.FieldSpec{
			{Name: "id", Type: models.FieldTypeString},
			{Name: "amount", Type: models.FieldTypeFloat, Nullable: true},
		},
	}))
	require.NoError(t, r.RegisterRule("payment", &models.ValidationRule{
		Name:     "amount_non_negative",
		Severity: models.SeverityBlocking,
		Check: func(e *models.Entity) (bool, string) {
			if a, ok := e.Float("amount"); ok && a < 0 {
				return false, fmt.Sprintf("amount is negative: %.2f", a)
			}
			return true, ""
		},
	}))
	require.NoError(t, r.RegisterRule("payment", &models.ValidationRule{
		Name:     "amount_reasonable",
		Severity: models.SeverityWarning,
		Check: func(e *models.Entity) (bool, string) {
			if a, ok := e.Float("amount"); ok && a > 1000 {
				return false, "amount unusually large"
			}
			return true, ""
		},
	}))
	return r
}

func payment(id string, amount float64) *models.Entity {
	return &models.Entity{
		Name: "payment",
		Key:  id,
		Fields: map[string]interface{}{
			"id":     id,
			"amount": amount,
		},
		IngestedAt: time.Now(),
	}
}

func TestEvaluateAllClean(t *testing.T) {
	gate := New(paymentRegistry(t), logrus.New())

	report, err := gate.Evaluate("payment", []*models.Entity{
		payment("a", 10), payment("b", 20),
	})
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Equal(t, 2, report.TotalRecords)
	assert.Equal(t, 2, report.PassedRecords)
	assert.Empty(t, report.Violations)
	assert.NotEmpty(t, report.ID)
}

func TestEvaluateBlockingViolationsFailVerdict(t *testing.T) {
	gate := New(paymentRegistry(t), logrus.New())

	entities := make([]*models.Entity, 0, 100)
	for i := 0; i < 100; i++ {
		amount := float64(i + 1)
		if i < 10 {
			amount = -amount
		}
		entities = append(entities, payment(fmt.Sprintf("p%03d", i), amount))
	}

	report, err := gate.Evaluate("payment", entities)
	require.NoError(t, err)

	assert.False(t, report.Passed)
	assert.Equal(t, 100, report.TotalRecords)
	assert.Equal(t, 90, report.PassedRecords)
	assert.Equal(t, 10, report.BlockingCount())
	assert.Len(t, report.Violations, 10)
	for _, v := range report.Violations {
		assert.Equal(t, "amount_non_negative", v.Rule)
		assert.Equal(t, models.SeverityBlocking, v.Severity)
		assert.NotEmpty(t, v.RecordKey)
	}
}

func TestEvaluateWarningsNeverFlipVerdict(t *testing.T) {
	gate := New(paymentRegistry(t), logrus.New())

	report, err := gate.Evaluate("payment", []*models.Entity{
		payment("a", 5000), payment("b", 20),
	})
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Equal(t, 2, report.PassedRecords)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "amount_reasonable", report.Violations[0].Rule)
	assert.Equal(t, models.SeverityWarning, report.Violations[0].Severity)
	assert.Equal(t, 1, report.WarningCount())
	assert.Equal(t, 0, report.BlockingCount())
}

func TestEvaluateViolationsFollowRegistrationOrder(t *testing.T) {
	gate := New(paymentRegistry(t), logrus.New())

	// One entity violating both rules: blocking rule registered first
	report, err := gate.Evaluate("payment", []*models.Entity{
		payment("a", -2000),
		payment("b", 2000),
	})
	require.NoError(t, err)

	require.Len(t, report.Violations, 2)
	assert.Equal(t, "amount_non_negative", report.Violations[0].Rule)
	assert.Equal(t, "amount_reasonable", report.Violations[1].Rule)
}

func TestEvaluateSameEntityBlockedOnce(t *testing.T) {
	r := paymentRegistry(t)
	require.NoError(t, r.RegisterRule("payment", &models.ValidationRule{
		Name:     "amount_whole_cents",
		Severity: models.SeverityBlocking,
		Check: func(e *models.Entity) (bool, string) {
			if a, ok := e.Float("amount"); ok && a != float64(int64(a*100))/100 {
				return false, "amount has sub-cent precision"
			}
			return true, ""
		},
	}))
	gate := New(r, logrus.New())

	// Violates two blocking rules but is only one failed record
	report, err := gate.Evaluate("payment", []*models.Entity{
		payment("a", -1.2345),
		payment("b", 1),
	})
	require.NoError(t, err)

	assert.False(t, report.Passed)
	assert.Equal(t, 1, report.PassedRecords)
}

func TestEvaluateUnknownEntity(t *testing.T) {
	gate := New(paymentRegistry(t), logrus.New())

	_, err := gate.Evaluate("refund", nil)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeUnknownEntity, appErr.Code)
}

func TestEvaluateBatchRuleBlocksWholeBatch(t *testing.T) {
	r := paymentRegistry(t)
	require.NoError(t, r.RegisterRule("payment", &models.ValidationRule{
		Name:     "batch_not_empty",
		Severity: models.SeverityBlocking,
		Scope:    models.ScopeBatch,
		BatchCheck: func(entities []*models.Entity) []models.Violation {
			if len(entities) > 0 {
				return nil
			}
			return []models.Violation{{Message: "batch is empty"}}
		},
	}))
	gate := New(r, logrus.New())

	report, err := gate.Evaluate("payment", nil)
	require.NoError(t, err)

	assert.False(t, report.Passed)
	assert.Equal(t, 0, report.TotalRecords)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "batch_not_empty", report.Violations[0].Rule)
	assert.Equal(t, models.SeverityBlocking, report.Violations[0].Severity)
}

func TestEvaluateExtraRulesAppended(t *testing.T) {
	gate := New(paymentRegistry(t), logrus.New())

	extra := &models.ValidationRule{
		Name:     "run_scoped",
		Severity: models.SeverityWarning,
		Scope:    models.ScopeBatch,
		BatchCheck: func(entities []*models.Entity) []models.Violation {
			return []models.Violation{{Message: "always warns"}}
		},
	}
	report, err := gate.Evaluate("payment", []*models.Entity{payment("a", 1)}, extra)
	require.NoError(t, err)

	assert.True(t, report.Passed)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "run_scoped", report.Violations[0].Rule)
}

package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelytics/medallion/pkg/models"
)

func ingested(key string, at time.Time) *models.Entity {
	return &models.Entity{
		Name:       "payment",
		Key:        key,
		Fields:     map[string]interface{}{"id": key},
		IngestedAt: at,
	}
}

func TestFreshnessRule(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	rule := FreshnessRule(24*time.Hour, func() time.Time { return now })

	assert.Equal(t, models.SeverityWarning, rule.Severity)
	assert.Equal(t, models.ScopeBatch, rule.Scope)

	// Fresh batch: newest record inside the window
	violations := rule.BatchCheck([]*models.Entity{
		ingested("a", now.Add(-48*time.Hour)),
		ingested("b", now.Add(-2*time.Hour)),
	})
	assert.Empty(t, violations)

	// Stale batch
	violations = rule.BatchCheck([]*models.Entity{
		ingested("a", now.Add(-30 * time.Hour)),
	})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "hours old")

	// Empty batch is not a freshness problem
	assert.Empty(t, rule.BatchCheck(nil))
}

func TestMinRowCountRule(t *testing.T) {
	rule := MinRowCountRule(10, 0.5)

	assert.Equal(t, models.SeverityBlocking, rule.Severity)

	entities := []*models.Entity{
		ingested("a", time.Now()), ingested("b", time.Now()),
		ingested("c", time.Now()), ingested("d", time.Now()),
		ingested("e", time.Now()),
	}
	assert.Empty(t, rule.BatchCheck(entities))

	violations := rule.BatchCheck(entities[:4])
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "below minimum")

	// No previous count means no baseline to compare against
	assert.Empty(t, MinRowCountRule(0, 0.5).BatchCheck(nil))
}

func TestReferentialIntegrityRule(t *testing.T) {
	referenced := map[string]struct{}{"u1": {}, "u2": {}}
	rule := ReferentialIntegrityRule("user_reference", "user_id", referenced)

	assert.Equal(t, models.SeverityWarning, rule.Severity)

	purchase := func(key, userID string) *models.Entity {
		return &models.Entity{
			Name: "purchase",
			Key:  key,
			Fields: map[string]interface{}{
				"user_id": userID,
			},
		}
	}

	violations := rule.BatchCheck([]*models.Entity{
		purchase("p1", "u1"),
		purchase("p2", "ghost"),
		purchase("p3", "u2"),
		purchase("p4", "phantom"),
	})
	require.Len(t, violations, 2)
	assert.Equal(t, "p2", violations[0].RecordKey)
	assert.Equal(t, "p4", violations[1].RecordKey)
	assert.Contains(t, violations[0].Message, "ghost")

	// Records without the foreign key are skipped, not orphans
	assert.Empty(t, rule.BatchCheck([]*models.Entity{
		{Name: "purchase", Key: "p5", Fields: map[string]interface{}{}},
	}))
}

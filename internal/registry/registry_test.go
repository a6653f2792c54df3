package registry

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelytics/medallion/internal/config"
	apperrors "github.com/travelytics/medallion/pkg/errors"
	"github.com/travelytics/medallion/pkg/models"
)

func testSchema(entity string) *models.Schema {
	return &models.Schema{
		Entity:     entity,
		PrimaryKey: []string{"id"},
		Fields: []models.FieldSpec{
			{Name: "id", Type: models.FieldTypeString},
			{Name: "amount", Type: models.FieldTypeFloat, Nullable: true},
		},
	}
}

func TestRegisterSchemaAndLookup(t *testing.T) {
	r := New(logrus.New())

	require.NoError(t, r.RegisterSchema(testSchema("payment")))

	schema, err := r.Schema("payment")
	require.NoError(t, err)
	assert.Equal(t, "payment", schema.Entity)
	assert.Equal(t, []string{"id"}, schema.PrimaryKey)
}

func TestRegisterSchemaDuplicate(t *testing.T) {
	r := New(logrus.New())

	require.NoError(t, r.RegisterSchema(testSchema("payment")))
	err := r.RegisterSchema(testSchema("payment"))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeSchemaExists, appErr.Code)
}

func TestRegisterSchemaInvalid(t *testing.T) {
	r := New(logrus.New())

	err := r.RegisterSchema(&models.Schema{Entity: "payment"})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInvalidSchema, appErr.Code)

	// Primary key must reference a declared field
	err = r.RegisterSchema(&models.Schema{
		Entity:     "payment",
		PrimaryKey: []string{"missing"},
		Fields:     []models.FieldSpec{{Name: "id", Type: models.FieldTypeString}},
	})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInvalidSchema, appErr.Code)
}

func TestSchemaUnknownEntity(t *testing.T) {
	r := New(logrus.New())

	_, err := r.Schema("nope")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeUnknownEntity, appErr.Code)

	_, err = r.Rules("nope")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeUnknownEntity, appErr.Code)
}

func TestRegisterRuleRequiresSchema(t *testing.T) {
	r := New(logrus.New())

	err := r.RegisterRule("payment", &models.ValidationRule{
		Name:  "amount_positive",
		Check: func(e *models.Entity) (bool, string) { return true, "" },
	})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeUnknownEntity, appErr.Code)
}

func TestRegisterRuleValidation(t *testing.T) {
	r := New(logrus.New())
	require.NoError(t, r.RegisterSchema(testSchema("payment")))

	var appErr *apperrors.AppError

	err := r.RegisterRule("payment", &models.ValidationRule{Name: "no_check"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInvalidRule, appErr.Code)

	err = r.RegisterRule("payment", &models.ValidationRule{
		Name:  "batch_without_batch_check",
		Scope: models.ScopeBatch,
		Check: func(e *models.Entity) (bool, string) { return true, "" },
	})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInvalidRule, appErr.Code)
}

func TestRulesPreserveRegistrationOrder(t *testing.T) {
	r := New(logrus.New())
	require.NoError(t, r.RegisterSchema(testSchema("payment")))

	names := []string{"first", "second", "third"}
	for _, name := range names {
		require.NoError(t, r.RegisterRule("payment", &models.ValidationRule{
			Name:     name,
			Severity: models.SeverityWarning,
			Check:    func(e *models.Entity) (bool, string) { return true, "" },
		}))
	}

	rules, err := r.Rules("payment")
	require.NoError(t, err)
	require.Len(t, rules, 3)
	for i, name := range names {
		assert.Equal(t, name, rules[i].Name)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r, err := DefaultRegistry(config.DefaultConfig(), logrus.New())
	require.NoError(t, err)

	assert.Equal(t, []string{EntityDestination, EntityPurchase, EntityUser}, r.Entities())

	purchase, err := r.Schema(EntityPurchase)
	require.NoError(t, err)
	assert.Equal(t, []string{"transaction_id"}, purchase.PrimaryKey)
	assert.Equal(t, "transaction_timestamp", purchase.UpdateField)

	price, ok := purchase.Field("price_usd")
	require.True(t, ok)
	assert.Equal(t, "price", price.SourceColumn())
	assert.True(t, price.Nullable)
	assert.Equal(t, FlagPriceInvalid, price.InvalidFlag)

	rules, err := r.Rules(EntityPurchase)
	require.NoError(t, err)
	assert.NotEmpty(t, rules)
}

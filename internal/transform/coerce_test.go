package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelytics/medallion/pkg/models"
)

func TestCoerceValue(t *testing.T) {
	v, err := coerceValue("42", models.FieldTypeInt)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = coerceValue(42, models.FieldTypeFloat)
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)

	v, err = coerceValue("19.99", models.FieldTypeFloat)
	require.NoError(t, err)
	assert.Equal(t, 19.99, v)

	v, err = coerceValue(7, models.FieldTypeString)
	require.NoError(t, err)
	assert.Equal(t, "7", v)

	v, err = coerceValue("true", models.FieldTypeBool)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	ts := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	v, err = coerceValue(ts, models.FieldTypeTimestamp)
	require.NoError(t, err)
	assert.Equal(t, ts, v)

	v, err = coerceValue("2024-06-15T10:00:00Z", models.FieldTypeTimestamp)
	require.NoError(t, err)
	assert.Equal(t, ts, v)
}

func TestCoerceValueFailures(t *testing.T) {
	_, err := coerceValue("not a number", models.FieldTypeInt)
	assert.Error(t, err)

	_, err = coerceValue("yes please", models.FieldTypeBool)
	assert.Error(t, err)

	_, err = coerceValue("whenever", models.FieldTypeTimestamp)
	assert.Error(t, err)

	_, err = coerceValue("x", "geometry")
	assert.Error(t, err)
}

package ingest

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatchAuditMetadata(t *testing.T) {
	ingestedAt := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	rows := []map[string]interface{}{
		{"id": "p1", "ts": ingestedAt, "user_id": "u1", "destination_id": "d1", "price": 100.0},
		{"id": "p2", "ts": ingestedAt, "user_id": "u2", "destination_id": "d2", "price": 200.0},
	}

	records := PurchaseSource.NewBatch("batch-7", rows, ingestedAt, logrus.New())
	require.Len(t, records, 2)

	for i, rec := range records {
		assert.Equal(t, "travel_purchase", rec.SourceTable)
		assert.Equal(t, "batch-7", rec.BatchID)
		assert.Equal(t, ingestedAt, rec.IngestedAt)
		assert.Equal(t, i, rec.IngestIndex)
		assert.Len(t, rec.RowHash, 32)
	}
	assert.NotEqual(t, records[0].RowHash, records[1].RowHash)

	// Rows pass through unmodified
	assert.Equal(t, 100.0, records[0].Values["price"])
}

func TestRowHashDeterministic(t *testing.T) {
	ingestedAt := time.Now()
	row := map[string]interface{}{"id": "p1", "ts": "2024-06-15", "user_id": "u1", "destination_id": "d1"}

	first := PurchaseSource.NewBatch("b1", []map[string]interface{}{row}, ingestedAt, nil)
	second := PurchaseSource.NewBatch("b2", []map[string]interface{}{row}, ingestedAt.Add(time.Hour), nil)

	assert.Equal(t, first[0].RowHash, second[0].RowHash)
}

func TestRowHashIgnoresNonKeyColumns(t *testing.T) {
	ingestedAt := time.Now()
	a := map[string]interface{}{"id": "p1", "ts": "2024-06-15", "user_id": "u1", "destination_id": "d1", "price": 100.0}
	b := map[string]interface{}{"id": "p1", "ts": "2024-06-15", "user_id": "u1", "destination_id": "d1", "price": 999.0}

	records := PurchaseSource.NewBatch("b1", []map[string]interface{}{a, b}, ingestedAt, nil)
	assert.Equal(t, records[0].RowHash, records[1].RowHash)
}

func TestRowHashMissingKeyColumn(t *testing.T) {
	records := DestinationSource.NewBatch("b1", []map[string]interface{}{
		{"destination_name": "paris"},
	}, time.Now(), nil)

	require.Len(t, records, 1)
	assert.Len(t, records[0].RowHash, 32)
}

func TestBuiltinSources(t *testing.T) {
	assert.Equal(t, "travel_purchase", PurchaseSource.Table)
	assert.Equal(t, "user_features", UserSource.Table)
	assert.Equal(t, "destination_location", DestinationSource.Table)
	assert.Contains(t, UserSource.KeyColumns, "user_id")
	assert.Contains(t, DestinationSource.KeyColumns, "destination_id")
}

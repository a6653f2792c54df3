package models

import "time"

// RawRecord is a single unmodified source row plus the audit metadata written
// by the ingestion collaborator. Records are immutable once ingested.
type RawRecord struct {
	Values      map[string]interface{} `json:"values"`
	SourceTable string                 `json:"source_table"`
	BatchID     string                 `json:"batch_id"`
	IngestedAt  time.Time              `json:"ingested_at"`
	IngestIndex int                    `json:"ingest_index"`
	RowHash     string                 `json:"row_hash"`
}

// Entity is a typed record conforming to a registered schema. Entities are
// produced by the transformer and never mutated afterwards; corrections
// require a new batch.
type Entity struct {
	Name        string                 `json:"name"`
	Key         string                 `json:"key"`
	Fields      map[string]interface{} `json:"fields"`
	UpdatedAt   time.Time              `json:"updated_at"`
	IngestedAt  time.Time              `json:"ingested_at"`
	IngestIndex int                    `json:"ingest_index"`
	ProcessedAt time.Time              `json:"processed_at"`
}

// IsNull reports whether the field is absent or holds a null value.
func (e *Entity) IsNull(field string) bool {
	v, ok := e.Fields[field]
	return !ok || v == nil
}

// Float returns the field as a float64. Integer fields are widened.
func (e *Entity) Float(field string) (float64, bool) {
	switch v := e.Fields[field].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Int returns the field as an int64.
func (e *Entity) Int(field string) (int64, bool) {
	v, ok := e.Fields[field].(int64)
	return v, ok
}

// String returns the field as a string.
func (e *Entity) String(field string) (string, bool) {
	v, ok := e.Fields[field].(string)
	return v, ok
}

// Bool returns the field as a bool.
func (e *Entity) Bool(field string) (bool, bool) {
	v, ok := e.Fields[field].(bool)
	return v, ok
}

// Time returns the field as a time.Time.
func (e *Entity) Time(field string) (time.Time, bool) {
	v, ok := e.Fields[field].(time.Time)
	return v, ok
}

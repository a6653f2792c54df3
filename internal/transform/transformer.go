package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/travelytics/medallion/internal/registry"
	"github.com/travelytics/medallion/pkg/models"
)

// Transformer converts raw records into canonical silver entities: type
// coercion, null handling, deduplication and derived-feature computation, in
// that order. Each step is pure over its input; excluded records are always
// reported in the warnings list.
type Transformer struct {
	registry *registry.Registry
	logger   *logrus.Logger
	now      func() time.Time
}

// New creates a transformer bound to a registry
func New(reg *registry.Registry, logger *logrus.Logger) *Transformer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Transformer{
		registry: reg,
		logger:   logger,
		now:      time.Now,
	}
}

// Transform cleans and standardizes one entity's raw records. The returned
// entity order is the survivor selection order (first appearance of each
// primary key in the batch), which is deterministic for a given input.
func (t *Transformer) Transform(entityName string, raw []models.RawRecord) ([]*models.Entity, []models.TransformWarning, error) {
	schema, err := t.registry.Schema(entityName)
	if err != nil {
		return nil, nil, err
	}

	warnings := make([]models.TransformWarning, 0)

	// Coercion and null handling
	candidates := make([]*models.Entity, 0, len(raw))
	for i := range raw {
		rec := &raw[i]
		fields, warn := t.coerceRecord(schema, rec)
		if warn != nil {
			warnings = append(warnings, *warn)
			continue
		}

		e := &models.Entity{
			Name:        entityName,
			Key:         primaryKey(schema, fields),
			Fields:      fields,
			IngestedAt:  rec.IngestedAt,
			IngestIndex: rec.IngestIndex,
		}
		if schema.UpdateField != "" {
			if ts, ok := fields[schema.UpdateField].(time.Time); ok {
				e.UpdatedAt = ts
			}
		}
		candidates = append(candidates, e)
	}

	// Deduplication: latest update timestamp wins, ties broken by ingestion
	// order (highest index survives)
	survivors, dupWarnings := dedupe(entityName, candidates)
	warnings = append(warnings, dupWarnings...)

	// Derived features, computed only for survivors
	processedAt := t.now()
	for _, e := range survivors {
		for _, d := range schema.Derived {
			e.Fields[d.Name] = d.Fn(e.Fields)
		}
		e.ProcessedAt = processedAt
	}

	t.logger.WithFields(logrus.Fields{
		"entity":    entityName,
		"input":     len(raw),
		"survivors": len(survivors),
		"warnings":  len(warnings),
	}).Info("Transform completed")

	return survivors, warnings, nil
}

// coerceRecord applies type coercion, defaults, cleaners and the
// non-nullable check to a single record. A nil warning means the record
// survived.
func (t *Transformer) coerceRecord(schema *models.Schema, rec *models.RawRecord) (map[string]interface{}, *models.TransformWarning) {
	fields := make(map[string]interface{}, len(schema.Fields))
	flags := make(map[string]bool)

	for i := range schema.Fields {
		f := &schema.Fields[i]
		v := rec.Values[f.SourceColumn()]

		if v != nil {
			coerced, err := coerceValue(v, f.Type)
			if err != nil {
				if f.Default == nil {
					return nil, &models.TransformWarning{
						Type:        models.WarningMalformed,
						Entity:      schema.Entity,
						RecordKey:   recordKeyFromRaw(schema, rec),
						Field:       f.Name,
						Message:     fmt.Sprintf("cannot coerce %v to %s", v, f.Type),
						IngestIndex: rec.IngestIndex,
					}
				}
				coerced = f.Default()
			}
			v = coerced
		} else if f.Default != nil {
			v = f.Default()
		}

		if f.InvalidFlag != "" {
			if _, ok := flags[f.InvalidFlag]; !ok {
				flags[f.InvalidFlag] = false
			}
		}
		if v != nil && f.Clean != nil {
			cleaned, invalid := f.Clean(v)
			v = cleaned
			if f.InvalidFlag != "" && invalid {
				flags[f.InvalidFlag] = true
			}
		}

		if v == nil && !f.Nullable {
			return nil, &models.TransformWarning{
				Type:        models.WarningMalformed,
				Entity:      schema.Entity,
				RecordKey:   recordKeyFromRaw(schema, rec),
				Field:       f.Name,
				Message:     fmt.Sprintf("non-nullable field %s is null", f.Name),
				IngestIndex: rec.IngestIndex,
			}
		}
		fields[f.Name] = v
	}

	for flag, set := range flags {
		fields[flag] = set
	}
	return fields, nil
}

// dedupe groups candidates by primary key and keeps the most recently
// updated record per group. Group order follows the first appearance of each
// key; discarded duplicates are reported in ingestion order.
func dedupe(entityName string, candidates []*models.Entity) ([]*models.Entity, []models.TransformWarning) {
	groups := make(map[string][]*models.Entity)
	order := make([]string, 0, len(candidates))
	for _, e := range candidates {
		if _, seen := groups[e.Key]; !seen {
			order = append(order, e.Key)
		}
		groups[e.Key] = append(groups[e.Key], e)
	}

	survivors := make([]*models.Entity, 0, len(order))
	warnings := make([]models.TransformWarning, 0)
	for _, key := range order {
		group := groups[key]
		winner := group[0]
		for _, e := range group[1:] {
			if e.UpdatedAt.After(winner.UpdatedAt) ||
				(e.UpdatedAt.Equal(winner.UpdatedAt) && e.IngestIndex > winner.IngestIndex) {
				winner = e
			}
		}
		for _, e := range group {
			if e == winner {
				continue
			}
			warnings = append(warnings, models.TransformWarning{
				Type:        models.WarningDuplicateDiscarded,
				Entity:      entityName,
				RecordKey:   e.Key,
				Message:     fmt.Sprintf("superseded by record with update timestamp %s", winner.UpdatedAt.Format(time.RFC3339)),
				IngestIndex: e.IngestIndex,
			})
		}
		survivors = append(survivors, winner)
	}
	return survivors, warnings
}

func primaryKey(schema *models.Schema, fields map[string]interface{}) string {
	parts := make([]string, len(schema.PrimaryKey))
	for i, pk := range schema.PrimaryKey {
		parts[i] = fmt.Sprintf("%v", fields[pk])
	}
	return strings.Join(parts, "|")
}

// recordKeyFromRaw derives a best-effort key for warning entries on records
// that never became entities. Falls back to the row hash when the raw row is
// missing its key columns.
func recordKeyFromRaw(schema *models.Schema, rec *models.RawRecord) string {
	parts := make([]string, 0, len(schema.PrimaryKey))
	for _, pk := range schema.PrimaryKey {
		spec, ok := schema.Field(pk)
		if !ok {
			continue
		}
		if v := rec.Values[spec.SourceColumn()]; v != nil {
			parts = append(parts, fmt.Sprintf("%v", v))
		}
	}
	if len(parts) == 0 {
		return rec.RowHash
	}
	return strings.Join(parts, "|")
}

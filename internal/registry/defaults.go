package registry

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/travelytics/medallion/internal/config"
	"github.com/travelytics/medallion/pkg/models"
)

// Built-in entity names
const (
	EntityPurchase    = "purchase"
	EntityUser        = "user"
	EntityDestination = "destination"
)

// Flag fields set by the transformer when a cleaner nulls an invalid value
const (
	FlagPriceInvalid    = "_price_invalid"
	FlagLocationInvalid = "_location_invalid"
)

// DefaultRegistry builds the registry for the travel analytics pipeline:
// purchases, users and destinations, with the cleaning rules and DQ rules of
// the production medallion pipeline bound to the given configuration.
func DefaultRegistry(cfg *config.EngineConfig, logger *logrus.Logger) (*Registry, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	r := New(logger)

	schemas := []*models.Schema{
		purchaseSchema(cfg),
		userSchema(cfg),
		destinationSchema(cfg),
	}
	for _, s := range schemas {
		if err := r.RegisterSchema(s); err != nil {
			return nil, err
		}
	}

	for entity, rules := range map[string][]*models.ValidationRule{
		EntityPurchase:    purchaseRules(cfg),
		EntityUser:        userRules(),
		EntityDestination: destinationRules(),
	} {
		for _, rule := range rules {
			if err := r.RegisterRule(entity, rule); err != nil {
				return nil, err
			}
		}
	}

	return r, nil
}

func purchaseSchema(cfg *config.EngineConfig) *models.Schema {
	return &models.Schema{
		Entity:      EntityPurchase,
		PrimaryKey:  []string{"transaction_id"},
		UpdateField: "transaction_timestamp",
		Fields: []models.FieldSpec{
			{Name: "transaction_id", Source: "id", Type: models.FieldTypeString},
			{Name: "transaction_timestamp", Source: "ts", Type: models.FieldTypeTimestamp},
			{Name: "user_id", Type: models.FieldTypeString},
			{Name: "destination_id", Type: models.FieldTypeString},
			{Name: "clicked", Type: models.FieldTypeBool, Nullable: true,
				Default: func() interface{} { return false }},
			{Name: "purchased", Type: models.FieldTypeBool, Nullable: true,
				Default: func() interface{} { return false }},
			{Name: "booking_date", Type: models.FieldTypeTimestamp, Nullable: true},
			{Name: "price_usd", Source: "price", Type: models.FieldTypeFloat, Nullable: true,
				Clean:       priceCleaner(cfg.Cleaning.MaxPriceUSD, cfg.Cleaning.PricePrecision),
				InvalidFlag: FlagPriceInvalid},
			{Name: "user_latitude", Type: models.FieldTypeFloat, Nullable: true,
				Clean:       coordinateCleaner(90, cfg.Cleaning.CoordinatePrecision),
				InvalidFlag: FlagLocationInvalid},
			{Name: "user_longitude", Type: models.FieldTypeFloat, Nullable: true,
				Clean:       coordinateCleaner(180, cfg.Cleaning.CoordinatePrecision),
				InvalidFlag: FlagLocationInvalid},
		},
		Derived: []models.DerivedSpec{
			{Name: "transaction_year", Fn: timePart("transaction_timestamp", func(t time.Time) int64 {
				return int64(t.Year())
			})},
			{Name: "transaction_month", Fn: timePart("transaction_timestamp", func(t time.Time) int64 {
				return int64(t.Month())
			})},
			{Name: "transaction_day_of_week", Fn: timePart("transaction_timestamp", func(t time.Time) int64 {
				// 1=Sunday .. 7=Saturday, matching the warehouse convention
				return int64(t.Weekday()) + 1
			})},
			{Name: "transaction_hour", Fn: timePart("transaction_timestamp", func(t time.Time) int64 {
				return int64(t.Hour())
			})},
			{Name: "day_type", Fn: func(fields map[string]interface{}) interface{} {
				t, ok := fields["transaction_timestamp"].(time.Time)
				if !ok {
					return nil
				}
				if t.Weekday() == time.Sunday || t.Weekday() == time.Saturday {
					return "weekend"
				}
				return "weekday"
			}},
		},
	}
}

func userSchema(cfg *config.EngineConfig) *models.Schema {
	seg := cfg.Segmentation
	return &models.Schema{
		Entity:      EntityUser,
		PrimaryKey:  []string{"user_id"},
		UpdateField: "last_updated_at",
		Fields: []models.FieldSpec{
			{Name: "user_id", Type: models.FieldTypeString},
			{Name: "last_updated_at", Source: "ts", Type: models.FieldTypeTimestamp, Nullable: true},
			{Name: "avg_price_7day", Source: "mean_price_7d", Type: models.FieldTypeFloat, Nullable: true,
				Default: func() interface{} { return 0.0 },
				Clean:   roundCleaner(cfg.Cleaning.PricePrecision)},
			{Name: "purchases_6month", Source: "last_6m_purchases", Type: models.FieldTypeInt, Nullable: true,
				Default: func() interface{} { return int64(0) }},
			{Name: "user_latitude", Type: models.FieldTypeFloat, Nullable: true,
				Clean: coordinateCleaner(90, cfg.Cleaning.CoordinatePrecision)},
			{Name: "user_longitude", Type: models.FieldTypeFloat, Nullable: true,
				Clean: coordinateCleaner(180, cfg.Cleaning.CoordinatePrecision)},
		},
		Derived: []models.DerivedSpec{
			{Name: "purchase_frequency_segment", Fn: func(fields map[string]interface{}) interface{} {
				n, _ := fieldInt(fields, "purchases_6month")
				switch {
				case n >= seg.HighFrequencyMin:
					return "high_frequency"
				case n >= seg.MediumFrequencyMin:
					return "medium_frequency"
				default:
					return "low_frequency"
				}
			}},
			{Name: "price_segment", Fn: func(fields map[string]interface{}) interface{} {
				p, _ := fieldFloat(fields, "avg_price_7day")
				switch {
				case p >= seg.PremiumPriceMin:
					return "premium"
				case p >= seg.StandardPriceMin:
					return "standard"
				default:
					return "budget"
				}
			}},
		},
	}
}

func destinationSchema(cfg *config.EngineConfig) *models.Schema {
	return &models.Schema{
		Entity:     EntityDestination,
		PrimaryKey: []string{"destination_id"},
		Fields: []models.FieldSpec{
			{Name: "destination_id", Type: models.FieldTypeString},
			{Name: "destination_name", Type: models.FieldTypeString, Nullable: true,
				Clean: func(v interface{}) (interface{}, bool) {
					s, ok := v.(string)
					if !ok {
						return v, false
					}
					return titleCase(strings.TrimSpace(s)), false
				}},
			{Name: "latitude", Source: "dest_latitude", Type: models.FieldTypeFloat, Nullable: true,
				Clean: coordinateCleaner(90, cfg.Cleaning.CoordinatePrecision)},
			{Name: "longitude", Source: "dest_longitude", Type: models.FieldTypeFloat, Nullable: true,
				Clean: coordinateCleaner(180, cfg.Cleaning.CoordinatePrecision)},
		},
		Derived: []models.DerivedSpec{
			{Name: "hemisphere", Fn: func(fields map[string]interface{}) interface{} {
				lat, ok := fieldFloat(fields, "latitude")
				if !ok {
					return "Unknown"
				}
				if lat >= 0 {
					return "Northern"
				}
				return "Southern"
			}},
		},
	}
}

func purchaseRules(cfg *config.EngineConfig) []*models.ValidationRule {
	maxPrice := cfg.Cleaning.MaxPriceUSD
	return []*models.ValidationRule{
		{
			Name:        "record_count_positive",
			Description: "batch must contain at least one purchase",
			Severity:    models.SeverityBlocking,
			Scope:       models.ScopeBatch,
			BatchCheck:  nonEmptyBatchCheck("purchase"),
		},
		{
			Name:        "price_non_negative",
			Description: "validated price must not be negative",
			Severity:    models.SeverityBlocking,
			Scope:       models.ScopeEntity,
			Check: func(e *models.Entity) (bool, string) {
				p, ok := e.Float("price_usd")
				if ok && p < 0 {
					return false, fmt.Sprintf("price_usd is negative: %.2f", p)
				}
				return true, ""
			},
		},
		{
			Name:        "price_within_limit",
			Description: "validated price must not exceed the configured maximum",
			Severity:    models.SeverityBlocking,
			Scope:       models.ScopeEntity,
			Check: func(e *models.Entity) (bool, string) {
				p, ok := e.Float("price_usd")
				if ok && p > maxPrice {
					return false, fmt.Sprintf("price_usd %.2f exceeds limit %.2f", p, maxPrice)
				}
				return true, ""
			},
		},
		{
			Name:        "price_valid",
			Description: "raw price was inside the valid range",
			Severity:    models.SeverityWarning,
			Scope:       models.ScopeEntity,
			Check: func(e *models.Entity) (bool, string) {
				if flagged, _ := e.Bool(FlagPriceInvalid); flagged {
					return false, "raw price was outside the valid range and nulled"
				}
				return true, ""
			},
		},
		{
			Name:        "location_valid",
			Description: "user coordinates were inside the valid range",
			Severity:    models.SeverityWarning,
			Scope:       models.ScopeEntity,
			Check: func(e *models.Entity) (bool, string) {
				if flagged, _ := e.Bool(FlagLocationInvalid); flagged {
					return false, "user coordinates were out of range and nulled"
				}
				return true, ""
			},
		},
	}
}

func userRules() []*models.ValidationRule {
	return []*models.ValidationRule{
		{
			Name:        "record_count_positive",
			Description: "batch must contain at least one user",
			Severity:    models.SeverityBlocking,
			Scope:       models.ScopeBatch,
			BatchCheck:  nonEmptyBatchCheck("user"),
		},
		{
			Name:        "history_non_negative",
			Description: "historical purchase counters must not be negative",
			Severity:    models.SeverityBlocking,
			Scope:       models.ScopeEntity,
			Check: func(e *models.Entity) (bool, string) {
				if n, ok := e.Int("purchases_6month"); ok && n < 0 {
					return false, fmt.Sprintf("purchases_6month is negative: %d", n)
				}
				if p, ok := e.Float("avg_price_7day"); ok && p < 0 {
					return false, fmt.Sprintf("avg_price_7day is negative: %.2f", p)
				}
				return true, ""
			},
		},
	}
}

func destinationRules() []*models.ValidationRule {
	return []*models.ValidationRule{
		{
			Name:        "record_count_positive",
			Description: "batch must contain at least one destination",
			Severity:    models.SeverityBlocking,
			Scope:       models.ScopeBatch,
			BatchCheck:  nonEmptyBatchCheck("destination"),
		},
		{
			Name:        "name_present",
			Description: "destination should carry a display name",
			Severity:    models.SeverityWarning,
			Scope:       models.ScopeEntity,
			Check: func(e *models.Entity) (bool, string) {
				name, ok := e.String("destination_name")
				if !ok || name == "" {
					return false, "destination_name is missing"
				}
				return true, ""
			},
		},
	}
}

func nonEmptyBatchCheck(entity string) func([]*models.Entity) []models.Violation {
	return func(entities []*models.Entity) []models.Violation {
		if len(entities) > 0 {
			return nil
		}
		return []models.Violation{{
			Message: fmt.Sprintf("no %s records survived transformation", entity),
		}}
	}
}

// priceCleaner nulls prices outside [0, max] and rounds valid ones.
func priceCleaner(max float64, precision int) func(interface{}) (interface{}, bool) {
	return func(v interface{}) (interface{}, bool) {
		p, ok := v.(float64)
		if !ok {
			return v, false
		}
		if p < 0 || p > max {
			return nil, true
		}
		return round(p, precision), false
	}
}

// coordinateCleaner nulls coordinates outside [-bound, bound] and rounds
// valid ones.
func coordinateCleaner(bound float64, precision int) func(interface{}) (interface{}, bool) {
	return func(v interface{}) (interface{}, bool) {
		c, ok := v.(float64)
		if !ok {
			return v, false
		}
		if c < -bound || c > bound {
			return nil, true
		}
		return round(c, precision), false
	}
}

func roundCleaner(precision int) func(interface{}) (interface{}, bool) {
	return func(v interface{}) (interface{}, bool) {
		f, ok := v.(float64)
		if !ok {
			return v, false
		}
		return round(f, precision), false
	}
}

func timePart(field string, part func(time.Time) int64) func(map[string]interface{}) interface{} {
	return func(fields map[string]interface{}) interface{} {
		t, ok := fields[field].(time.Time)
		if !ok {
			return nil
		}
		return part(t)
	}
}

func fieldFloat(fields map[string]interface{}, name string) (float64, bool) {
	switch v := fields[name].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func fieldInt(fields map[string]interface{}, name string) (int64, bool) {
	v, ok := fields[name].(int64)
	return v, ok
}

func round(v float64, precision int) float64 {
	scale := math.Pow10(precision)
	return math.Round(v*scale) / scale
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

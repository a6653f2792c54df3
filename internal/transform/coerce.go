package transform

import (
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/travelytics/medallion/pkg/models"
)

// coerceValue converts a raw attribute value to the declared field type.
// Numeric strings, warehouse timestamp strings and the usual bool spellings
// are accepted; anything else is a coercion failure.
func coerceValue(v interface{}, ft models.FieldType) (interface{}, error) {
	switch ft {
	case models.FieldTypeString:
		return cast.ToStringE(v)
	case models.FieldTypeInt:
		return cast.ToInt64E(v)
	case models.FieldTypeFloat:
		return cast.ToFloat64E(v)
	case models.FieldTypeBool:
		return cast.ToBoolE(v)
	case models.FieldTypeTimestamp:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
		return cast.ToTimeE(v)
	default:
		return nil, fmt.Errorf("unknown field type %s", ft)
	}
}

package models

// FieldType defines the coerced type of a schema field
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInt       FieldType = "int"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBool      FieldType = "bool"
	FieldTypeTimestamp FieldType = "timestamp"
)

// FieldSpec declares how a single raw column becomes a typed entity field.
// Default, when present, is the only place a missing value may be filled in.
// Clean runs after coercion and defaults; it may normalize the value or null
// it out, reporting invalid=true so the transformer can set the field's
// invalid flag.
type FieldSpec struct {
	Name        string                                              `json:"name"`
	Source      string                                              `json:"source,omitempty"`
	Type        FieldType                                           `json:"type"`
	Nullable    bool                                                `json:"nullable"`
	Default     func() interface{}                                  `json:"-"`
	Clean       func(v interface{}) (out interface{}, invalid bool) `json:"-"`
	InvalidFlag string                                              `json:"invalid_flag,omitempty"`
}

// SourceColumn returns the raw column this field is read from; it defaults
// to the field name when no rename is declared.
func (f *FieldSpec) SourceColumn() string {
	if f.Source != "" {
		return f.Source
	}
	return f.Name
}

// DerivedSpec computes an entity-specific derived field from the already
// coerced fields. Derived fields are never used as dedup or validation keys.
type DerivedSpec struct {
	Name string                                  `json:"name"`
	Fn   func(fields map[string]interface{}) interface{} `json:"-"`
}

// Schema is the declarative shape of one entity: field specs, a primary key
// (single or composite), the field carrying the recognized update timestamp
// used for dedup survivor selection, and the derived field computations.
type Schema struct {
	Entity      string        `json:"entity"`
	PrimaryKey  []string      `json:"primary_key"`
	UpdateField string        `json:"update_field,omitempty"`
	Fields      []FieldSpec   `json:"fields"`
	Derived     []DerivedSpec `json:"derived,omitempty"`
}

// Field returns the spec for a named field, if declared.
func (s *Schema) Field(name string) (*FieldSpec, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

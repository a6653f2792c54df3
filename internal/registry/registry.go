package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/travelytics/medallion/pkg/errors"
	"github.com/travelytics/medallion/pkg/models"
)

// Registry holds the declarative schema and rule definitions for every
// entity. Registration is append-only during setup; lookups are pure. The
// registry is treated as immutable once the pipeline starts.
type Registry struct {
	logger  *logrus.Logger
	schemas map[string]*models.Schema
	rules   map[string][]*models.ValidationRule
	mu      sync.RWMutex
}

// New creates an empty registry
func New(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		logger:  logger,
		schemas: make(map[string]*models.Schema),
		rules:   make(map[string][]*models.ValidationRule),
	}
}

// RegisterSchema registers the schema for an entity. Registering the same
// entity twice is a configuration error.
func (r *Registry) RegisterSchema(schema *models.Schema) error {
	if schema == nil || schema.Entity == "" {
		return errors.NewRegistryError(errors.CodeInvalidSchema, "schema must name an entity")
	}
	if len(schema.PrimaryKey) == 0 {
		return errors.NewRegistryError(errors.CodeInvalidSchema,
			fmt.Sprintf("schema %s declares no primary key", schema.Entity))
	}
	for _, pk := range schema.PrimaryKey {
		if _, ok := schema.Field(pk); !ok {
			return errors.NewRegistryError(errors.CodeInvalidSchema,
				fmt.Sprintf("schema %s primary key field %s is not declared", schema.Entity, pk))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[schema.Entity]; exists {
		return errors.NewRegistryError(errors.CodeSchemaExists,
			fmt.Sprintf("schema %s already registered", schema.Entity))
	}
	r.schemas[schema.Entity] = schema
	r.logger.WithFields(logrus.Fields{
		"entity": schema.Entity,
		"fields": len(schema.Fields),
	}).Info("Schema registered")

	return nil
}

// RegisterRule appends a validation rule for an entity. The entity's schema
// must already be registered. Report order follows registration order.
func (r *Registry) RegisterRule(entityName string, rule *models.ValidationRule) error {
	if rule == nil || rule.Name == "" {
		return errors.NewRegistryError(errors.CodeInvalidRule, "rule must have a name")
	}
	if rule.Scope == models.ScopeBatch && rule.BatchCheck == nil {
		return errors.NewRegistryError(errors.CodeInvalidRule,
			fmt.Sprintf("batch rule %s declares no batch check", rule.Name))
	}
	if rule.Scope != models.ScopeBatch && rule.Check == nil {
		return errors.NewRegistryError(errors.CodeInvalidRule,
			fmt.Sprintf("rule %s declares no check", rule.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[entityName]; !exists {
		return errors.NewRegistryError(errors.CodeUnknownEntity,
			fmt.Sprintf("cannot register rule %s: unknown entity %s", rule.Name, entityName))
	}
	r.rules[entityName] = append(r.rules[entityName], rule)
	r.logger.WithFields(logrus.Fields{
		"entity":   entityName,
		"rule":     rule.Name,
		"severity": rule.Severity,
	}).Info("Rule registered")

	return nil
}

// Schema returns the registered schema for an entity
func (r *Registry) Schema(entityName string) (*models.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schema, exists := r.schemas[entityName]
	if !exists {
		return nil, errors.NewRegistryError(errors.CodeUnknownEntity,
			fmt.Sprintf("unknown entity %s", entityName))
	}
	return schema, nil
}

// Rules returns the rules registered for an entity, in registration order
func (r *Registry) Rules(entityName string) ([]*models.ValidationRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.schemas[entityName]; !exists {
		return nil, errors.NewRegistryError(errors.CodeUnknownEntity,
			fmt.Sprintf("unknown entity %s", entityName))
	}
	return r.rules[entityName], nil
}

// Entities returns the registered entity names in ascending order
func (r *Registry) Entities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

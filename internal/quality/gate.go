package quality

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/travelytics/medallion/internal/registry"
	"github.com/travelytics/medallion/pkg/models"
)

// Gate runs every rule registered for an entity against a batch and renders
// a verdict. Rules are independent predicates, so evaluation order cannot
// change the verdict; the report lists violations in registration order for
// reproducibility.
type Gate struct {
	registry *registry.Registry
	logger   *logrus.Logger
	now      func() time.Time
}

// New creates a gate bound to a registry
func New(reg *registry.Registry, logger *logrus.Logger) *Gate {
	if logger == nil {
		logger = logrus.New()
	}
	return &Gate{
		registry: reg,
		logger:   logger,
		now:      time.Now,
	}
}

// Evaluate checks a batch of entities against the registered rules plus any
// run-scoped extra rules (appended after the registered ones). The verdict
// is PASSED iff the violation set contains no blocking entry; warnings never
// block publication but are always reported.
func (g *Gate) Evaluate(entityName string, entities []*models.Entity, extra ...*models.ValidationRule) (*models.DQReport, error) {
	registered, err := g.registry.Rules(entityName)
	if err != nil {
		return nil, err
	}
	rules := make([]*models.ValidationRule, 0, len(registered)+len(extra))
	rules = append(rules, registered...)
	rules = append(rules, extra...)

	start := g.now()
	violations := make([]models.Violation, 0)
	blockedKeys := make(map[string]struct{})
	batchBlocked := false

	for _, rule := range rules {
		switch rule.Scope {
		case models.ScopeBatch:
			for _, v := range rule.BatchCheck(entities) {
				v.Rule = rule.Name
				v.Severity = rule.Severity
				violations = append(violations, v)
				if rule.Severity == models.SeverityBlocking {
					if v.RecordKey != "" {
						blockedKeys[v.RecordKey] = struct{}{}
					} else {
						batchBlocked = true
					}
				}
			}
		default:
			for _, e := range entities {
				ok, msg := rule.Check(e)
				if ok {
					continue
				}
				violations = append(violations, models.Violation{
					Rule:      rule.Name,
					Severity:  rule.Severity,
					RecordKey: e.Key,
					Message:   msg,
				})
				if rule.Severity == models.SeverityBlocking {
					blockedKeys[e.Key] = struct{}{}
				}
			}
		}
	}

	report := &models.DQReport{
		ID:            uuid.NewString(),
		Entity:        entityName,
		TotalRecords:  len(entities),
		PassedRecords: len(entities) - len(blockedKeys),
		Violations:    violations,
		Passed:        len(blockedKeys) == 0 && !batchBlocked,
		CheckedAt:     start,
		Duration:      g.now().Sub(start),
	}

	g.logger.WithFields(logrus.Fields{
		"entity":     entityName,
		"total":      report.TotalRecords,
		"passed":     report.PassedRecords,
		"violations": len(report.Violations),
		"verdict":    report.Passed,
	}).Info("DQ evaluation completed")

	return report, nil
}

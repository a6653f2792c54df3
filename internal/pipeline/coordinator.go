package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/travelytics/medallion/internal/aggregate"
	"github.com/travelytics/medallion/internal/config"
	"github.com/travelytics/medallion/internal/quality"
	"github.com/travelytics/medallion/internal/registry"
	"github.com/travelytics/medallion/internal/transform"
	"github.com/travelytics/medallion/pkg/models"
)

// Coordinator sequences bronze -> silver -> gold for one batch: transform,
// evaluate, and only on a clean DQ verdict, aggregate. It holds no business
// logic of its own; its single job is sequencing and never continuing past a
// blocking DQ failure.
type Coordinator struct {
	cfg         *config.EngineConfig
	registry    *registry.Registry
	transformer *transform.Transformer
	gate        *quality.Gate
	engine      *aggregate.Engine
	logger      *logrus.Logger
	metrics     *Metrics
	now         func() time.Time
	prevCounts  map[string]int
}

// Option configures a coordinator
type Option func(*Coordinator)

// WithMetrics attaches prometheus run metrics
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithPreviousCounts supplies the previous run's silver row counts, enabling
// the row-count volume rule per entity.
func WithPreviousCounts(counts map[string]int) Option {
	return func(c *Coordinator) { c.prevCounts = counts }
}

// NewCoordinator wires the pipeline stages to a shared registry and config
func NewCoordinator(cfg *config.EngineConfig, reg *registry.Registry, logger *logrus.Logger, opts ...Option) *Coordinator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	c := &Coordinator{
		cfg:         cfg,
		registry:    reg,
		transformer: transform.New(reg, logger),
		gate:        quality.New(reg, logger),
		engine:      aggregate.NewEngine(cfg, logger),
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunBatch processes one batch end to end. A blocking DQ violation yields a
// dq_failed result with full diagnostics and no metrics; the run itself
// still completes. Only registry or aggregation misconfiguration aborts the
// run with an error.
func (c *Coordinator) RunBatch(ctx context.Context, batch models.Batch) (*models.PipelineResult, error) {
	result := &models.PipelineResult{
		RunID:     uuid.NewString(),
		BatchID:   batch.ID,
		Entities:  make(map[string][]*models.Entity),
		Reports:   make(map[string]*models.DQReport),
		StartedAt: c.now(),
	}

	c.logger.WithFields(logrus.Fields{
		"run_id":   result.RunID,
		"batch_id": batch.ID,
	}).Info("Pipeline run started")

	// Silver: clean and standardize every registered entity
	transformStart := c.now()
	for _, entity := range c.registry.Entities() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entities, warnings, err := c.transformer.Transform(entity, batch.Records[entity])
		if err != nil {
			return nil, err
		}
		result.Entities[entity] = entities
		result.Warnings = append(result.Warnings, warnings...)
		c.observeTransform(entity, len(batch.Records[entity]), entities, warnings)
	}
	result.StageReached = models.StageTransformed
	c.observeDuration("transform", transformStart)

	// DQ gate
	evaluateStart := c.now()
	for _, entity := range c.registry.Entities() {
		report, err := c.gate.Evaluate(entity, result.Entities[entity], c.runRules(entity, result)...)
		if err != nil {
			return nil, err
		}
		result.Reports[entity] = report
		c.observeReport(entity, report)
	}
	c.observeDuration("evaluate", evaluateStart)

	if !result.DQPassed() {
		result.StageReached = models.StageDQFailed
		result.CompletedAt = c.now()
		c.observeRun(result)
		c.logger.WithFields(logrus.Fields{
			"run_id": result.RunID,
			"stage":  result.StageReached,
		}).Warn("Pipeline run blocked by data quality gate")
		return result, nil
	}

	// Gold: recomputed wholesale from the silver snapshot
	aggregateStart := c.now()
	metrics, err := c.buildGold(result)
	if err != nil {
		return nil, err
	}
	result.Metrics = metrics
	c.observeDuration("aggregate", aggregateStart)

	if report := c.verifyGold(metrics); report != nil {
		result.Reports["gold"] = report
	}

	result.StageReached = models.StageAggregated
	result.CompletedAt = c.now()
	c.observeRun(result)

	c.logger.WithFields(logrus.Fields{
		"run_id": result.RunID,
		"stage":  result.StageReached,
	}).Info("Pipeline run completed")

	return result, nil
}

// runRules builds the run-scoped batch rules: freshness everywhere, volume
// checks when a previous count is known, and referential integrity from
// purchases to the reference entities.
func (c *Coordinator) runRules(entity string, result *models.PipelineResult) []*models.ValidationRule {
	rules := []*models.ValidationRule{
		quality.FreshnessRule(c.cfg.Quality.FreshnessWindow, c.now),
	}
	if prev, ok := c.prevCounts[entity]; ok {
		rules = append(rules, quality.MinRowCountRule(prev, c.cfg.Quality.MinRowCountRatio))
	}
	if entity == registry.EntityPurchase {
		rules = append(rules,
			quality.ReferentialIntegrityRule("user_reference", "user_id",
				keySet(result.Entities[registry.EntityUser])),
			quality.ReferentialIntegrityRule("destination_reference", "destination_id",
				keySet(result.Entities[registry.EntityDestination])),
		)
	}
	return rules
}

func (c *Coordinator) buildGold(result *models.PipelineResult) (map[string][]models.AggregateMetric, error) {
	purchases := result.Entities[registry.EntityPurchase]
	users := result.Entities[registry.EntityUser]
	destinations := result.Entities[registry.EntityDestination]

	daily, err := c.engine.DailyRevenue(purchases)
	if err != nil {
		return nil, err
	}
	destPerf, err := c.engine.DestinationPerformance(destinations, purchases)
	if err != nil {
		return nil, err
	}
	engagement, err := c.engine.UserEngagement(users, purchases)
	if err != nil {
		return nil, err
	}
	monthly, err := c.engine.MonthlySummary(purchases)
	if err != nil {
		return nil, err
	}

	return map[string][]models.AggregateMetric{
		aggregate.GroupDailyRevenue:           daily,
		aggregate.GroupDestinationPerformance: destPerf,
		aggregate.GroupUserEngagement:         engagement,
		aggregate.GroupMonthlySummary:         monthly,
	}, nil
}

// verifyGold checks the aggregated percentages are plausible rates. Outliers
// are reported as warnings; they never block a run that passed the gate.
func (c *Coordinator) verifyGold(metrics map[string][]models.AggregateMetric) *models.DQReport {
	var violations []models.Violation
	checked := 0
	for _, ms := range metrics {
		for _, m := range ms {
			if m.Metric != "conversion_rate_pct" && m.Metric != "monthly_conversion_pct" {
				continue
			}
			checked++
			if m.Value < 0 || m.Value > 100 {
				violations = append(violations, models.Violation{
					Rule:      "conversion_rate_bounds",
					Severity:  models.SeverityWarning,
					RecordKey: fmt.Sprintf("%s/%s", m.Group, m.GroupKey),
					Message:   fmt.Sprintf("%s is %.2f, outside [0, 100]", m.Metric, m.Value),
				})
			}
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return &models.DQReport{
		ID:            uuid.NewString(),
		Entity:        "gold",
		TotalRecords:  checked,
		PassedRecords: checked - len(violations),
		Violations:    violations,
		Passed:        true,
		CheckedAt:     c.now(),
	}
}

func keySet(entities []*models.Entity) map[string]struct{} {
	set := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		set[e.Key] = struct{}{}
	}
	return set
}

func (c *Coordinator) observeTransform(entity string, in int, out []*models.Entity, warnings []models.TransformWarning) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordsIn.WithLabelValues(entity).Add(float64(in))
	c.metrics.RecordsOut.WithLabelValues(entity).Add(float64(len(out)))
	for _, w := range warnings {
		switch w.Type {
		case models.WarningMalformed:
			c.metrics.MalformedRecords.WithLabelValues(entity).Inc()
		case models.WarningDuplicateDiscarded:
			c.metrics.DuplicatesDiscarded.WithLabelValues(entity).Inc()
		}
	}
}

func (c *Coordinator) observeReport(entity string, report *models.DQReport) {
	if c.metrics == nil {
		return
	}
	for _, v := range report.Violations {
		c.metrics.Violations.WithLabelValues(entity, string(v.Severity)).Inc()
	}
}

func (c *Coordinator) observeRun(result *models.PipelineResult) {
	if c.metrics == nil {
		return
	}
	c.metrics.RunsTotal.WithLabelValues(string(result.StageReached)).Inc()
}

func (c *Coordinator) observeDuration(stage string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.StageDuration.WithLabelValues(stage).Observe(c.now().Sub(start).Seconds())
}

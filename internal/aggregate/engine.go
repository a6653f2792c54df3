package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/travelytics/medallion/internal/config"
	"github.com/travelytics/medallion/pkg/errors"
	"github.com/travelytics/medallion/pkg/models"
)

// UnknownGroup is the documented default group for entities whose grouping
// dimension is missing. Key extraction is total: every entity lands in
// exactly one group, never an exception.
const UnknownGroup = "unknown"

// MetricSpec declares one metric of a group spec: the output name, the
// source field, the aggregation function, and an optional row filter
// (conditional aggregation). Count with an empty field counts rows.
type MetricSpec struct {
	Name   string
	Field  string
	Fn     models.AggregateFn
	Filter func(e *models.Entity) bool
}

// GroupSpec declares a full group-by reduction: a grouping key extractor and
// the metrics to compute per group.
type GroupSpec struct {
	Name    string
	Key     func(e *models.Entity) string
	Metrics []MetricSpec
}

// Engine computes gold-layer aggregates from validated silver entities. All
// functions are associative and commutative over the group; averages are
// computed as sum/count at the end so results do not depend on input order.
// Output is sorted ascending by group key, a testable contract.
type Engine struct {
	cfg    *config.EngineConfig
	logger *logrus.Logger
}

// NewEngine creates an aggregation engine
func NewEngine(cfg *config.EngineConfig, logger *logrus.Logger) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{cfg: cfg, logger: logger}
}

type accumulator struct {
	sum      float64
	count    int64
	distinct map[string]struct{}
	min      float64
	max      float64
	seen     bool
}

// Aggregate runs one group-by reduction. Metrics are recomputed wholesale
// from the input on every call; there is no incremental merge state.
func (en *Engine) Aggregate(spec GroupSpec, entities []*models.Entity) ([]models.AggregateMetric, error) {
	if spec.Name == "" || spec.Key == nil || len(spec.Metrics) == 0 {
		return nil, errors.NewAggregationError(errors.CodeInvalidGroupSpec,
			"group spec needs a name, a key extractor and at least one metric")
	}
	for _, m := range spec.Metrics {
		switch m.Fn {
		case models.FnSum, models.FnAverage, models.FnMin, models.FnMax:
			if m.Field == "" {
				return nil, errors.NewAggregationError(errors.CodeInvalidGroupSpec,
					fmt.Sprintf("metric %s requires a source field", m.Name))
			}
		case models.FnCount, models.FnDistinctCount:
		default:
			return nil, errors.NewAggregationError(errors.CodeUnsupportedFn,
				fmt.Sprintf("metric %s uses unsupported function %s", m.Name, m.Fn))
		}
	}

	groups := make(map[string][]*accumulator)
	for _, e := range entities {
		key, err := extractKey(spec, e)
		if err != nil {
			return nil, err
		}
		accs, ok := groups[key]
		if !ok {
			accs = make([]*accumulator, len(spec.Metrics))
			for i := range accs {
				accs[i] = &accumulator{distinct: make(map[string]struct{})}
			}
			groups[key] = accs
		}
		for i := range spec.Metrics {
			m := &spec.Metrics[i]
			if m.Filter != nil && !m.Filter(e) {
				continue
			}
			accs[i].observe(m, e)
		}
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]models.AggregateMetric, 0, len(keys)*len(spec.Metrics))
	for _, key := range keys {
		accs := groups[key]
		for i := range spec.Metrics {
			m := &spec.Metrics[i]
			out = append(out, models.AggregateMetric{
				Group:    spec.Name,
				GroupKey: key,
				Metric:   m.Name,
				Value:    accs[i].finalize(m.Fn),
				Function: m.Fn,
			})
		}
	}

	en.logger.WithFields(logrus.Fields{
		"group":    spec.Name,
		"entities": len(entities),
		"groups":   len(keys),
		"metrics":  len(out),
	}).Debug("Aggregation completed")

	return out, nil
}

// extractKey applies the key extractor, mapping empty keys to the default
// group and converting extractor panics into an AggregationKeyError: a key
// function that cannot total-map an entity is a configuration bug.
func extractKey(spec GroupSpec, e *models.Entity) (key string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewAggregationError(errors.CodeAggregationKey,
				fmt.Sprintf("key extractor for %s panicked on record %s: %v", spec.Name, e.Key, r))
		}
	}()
	key = spec.Key(e)
	if key == "" {
		key = UnknownGroup
	}
	return key, nil
}

func (a *accumulator) observe(m *MetricSpec, e *models.Entity) {
	switch m.Fn {
	case models.FnCount:
		if m.Field == "" || !e.IsNull(m.Field) {
			a.count++
		}
	case models.FnDistinctCount:
		if !e.IsNull(m.Field) {
			a.distinct[fmt.Sprintf("%v", e.Fields[m.Field])] = struct{}{}
		}
	default:
		v, ok := numericValue(e, m.Field)
		if !ok {
			return
		}
		a.sum += v
		a.count++
		if !a.seen || v < a.min {
			a.min = v
		}
		if !a.seen || v > a.max {
			a.max = v
		}
		a.seen = true
	}
}

func (a *accumulator) finalize(fn models.AggregateFn) float64 {
	switch fn {
	case models.FnSum:
		return a.sum
	case models.FnCount:
		return float64(a.count)
	case models.FnDistinctCount:
		return float64(len(a.distinct))
	case models.FnAverage:
		if a.count == 0 {
			return 0
		}
		return a.sum / float64(a.count)
	case models.FnMin:
		return a.min
	case models.FnMax:
		return a.max
	default:
		return 0
	}
}

// numericValue widens a field to float64 for sum/average/min/max.
// Timestamps aggregate as unix seconds; bools as 0/1. Null fields are
// skipped, matching warehouse aggregate semantics.
func numericValue(e *models.Entity, field string) (float64, bool) {
	switch v := e.Fields[field].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case time.Time:
		return float64(v.Unix()), true
	default:
		return 0, false
	}
}

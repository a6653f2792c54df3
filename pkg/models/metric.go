package models

// AggregateFn identifies the aggregation function that produced a metric
type AggregateFn string

const (
	FnSum           AggregateFn = "sum"
	FnCount         AggregateFn = "count"
	FnDistinctCount AggregateFn = "distinct_count"
	FnAverage       AggregateFn = "average"
	FnMin           AggregateFn = "min"
	FnMax           AggregateFn = "max"
	// FnDerived marks values computed from other metrics after the group-by
	// reduction (rates, ranks, lags, tiers).
	FnDerived AggregateFn = "derived"
)

// AggregateMetric is one derived value: a grouping key plus a metric name,
// the numeric value, and the function that produced it. Categorical outputs
// (segments, tiers) carry the value in Label with Value zero.
type AggregateMetric struct {
	Group    string      `json:"group"`
	GroupKey string      `json:"group_key"`
	Metric   string      `json:"metric"`
	Value    float64     `json:"value"`
	Label    string      `json:"label,omitempty"`
	Function AggregateFn `json:"function"`
}

package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/travelytics/medallion/pkg/models"
)

// Gold-layer report builders. Each is a group spec over silver entities plus
// pure post-derivation (rates, ranks, lags, tiers) computed from the reduced
// values. Reports are recomputed wholesale per run; output order is
// ascending by group key.

const (
	GroupDailyRevenue           = "daily_revenue"
	GroupDestinationPerformance = "destination_performance"
	GroupUserEngagement         = "user_engagement"
	GroupMonthlySummary         = "monthly_summary"
)

func purchasedFilter(e *models.Entity) bool {
	p, _ := e.Bool("purchased")
	return p
}

func clickedFilter(e *models.Entity) bool {
	c, _ := e.Bool("clicked")
	return c
}

func purchasedAnd(inner func(e *models.Entity) bool) func(e *models.Entity) bool {
	return func(e *models.Entity) bool { return purchasedFilter(e) && inner(e) }
}

// DailyRevenue computes the daily revenue and transaction report from
// purchase entities, grouped by transaction date.
func (en *Engine) DailyRevenue(purchases []*models.Entity) ([]models.AggregateMetric, error) {
	spec := GroupSpec{
		Name: GroupDailyRevenue,
		Key: func(e *models.Entity) string {
			t, ok := e.Time("transaction_timestamp")
			if !ok {
				return ""
			}
			return t.Format("2006-01-02")
		},
		Metrics: []MetricSpec{
			{Name: "total_transactions", Fn: models.FnCount},
			{Name: "total_clicks", Fn: models.FnCount, Filter: clickedFilter},
			{Name: "total_purchases", Fn: models.FnCount, Filter: purchasedFilter},
			{Name: "total_revenue_usd", Field: "price_usd", Fn: models.FnSum, Filter: purchasedFilter},
			{Name: "avg_transaction_value_usd", Field: "price_usd", Fn: models.FnAverage, Filter: purchasedFilter},
			{Name: "min_transaction_usd", Field: "price_usd", Fn: models.FnMin, Filter: purchasedFilter},
			{Name: "max_transaction_usd", Field: "price_usd", Fn: models.FnMax, Filter: purchasedFilter},
			{Name: "unique_users", Field: "user_id", Fn: models.FnDistinctCount},
			{Name: "unique_destinations", Field: "destination_id", Fn: models.FnDistinctCount},
		},
	}

	base, err := en.Aggregate(spec, purchases)
	if err != nil {
		return nil, err
	}
	keys, rows := indexMetrics(base)

	out := make([]models.AggregateMetric, 0, len(base)+3*len(keys))
	for _, key := range keys {
		row := rows[key]
		out = append(out, rebuild(base, key)...)
		out = append(out,
			derived(GroupDailyRevenue, key, "conversion_rate_pct",
				pct(row["total_purchases"], row["total_transactions"])),
			derived(GroupDailyRevenue, key, "click_to_purchase_rate_pct",
				pct(row["total_purchases"], row["total_clicks"])),
			label(GroupDailyRevenue, key, "day_type", dayTypeOf(key)),
		)
	}
	return out, nil
}

// DestinationPerformance computes per-destination funnel and revenue
// metrics. Every destination appears even without purchase activity, the
// equivalent of the warehouse left join from the reference table.
func (en *Engine) DestinationPerformance(destinations, purchases []*models.Entity) ([]models.AggregateMetric, error) {
	spec := GroupSpec{
		Name: GroupDestinationPerformance,
		Key:  byStringField("destination_id"),
		Metrics: []MetricSpec{
			{Name: "total_views", Fn: models.FnCount},
			{Name: "total_clicks", Fn: models.FnCount, Filter: clickedFilter},
			{Name: "total_bookings", Fn: models.FnCount, Filter: purchasedFilter},
			{Name: "total_revenue_usd", Field: "price_usd", Fn: models.FnSum, Filter: purchasedFilter},
			{Name: "avg_booking_value_usd", Field: "price_usd", Fn: models.FnAverage, Filter: purchasedFilter},
			{Name: "unique_visitors", Field: "user_id", Fn: models.FnDistinctCount},
			{Name: "unique_buyers", Field: "user_id", Fn: models.FnDistinctCount, Filter: purchasedFilter},
			{Name: "first_transaction", Field: "transaction_timestamp", Fn: models.FnMin},
			{Name: "last_transaction", Field: "transaction_timestamp", Fn: models.FnMax},
		},
	}

	base, err := en.Aggregate(spec, purchases)
	if err != nil {
		return nil, err
	}
	_, rows := indexMetrics(base)

	ordered := sortedByKey(destinations)
	bookings := make(map[string]float64, len(ordered))
	revenue := make(map[string]float64, len(ordered))
	for _, d := range ordered {
		bookings[d.Key] = rows[d.Key]["total_bookings"]
		revenue[d.Key] = rows[d.Key]["total_revenue_usd"]
	}
	bookingRank := rankDesc(bookings)
	revenueRank := rankDesc(revenue)

	out := make([]models.AggregateMetric, 0, (len(spec.Metrics)+6)*len(ordered))
	for _, d := range ordered {
		name, _ := d.String("destination_name")
		hemisphere, _ := d.String("hemisphere")
		out = append(out,
			label(GroupDestinationPerformance, d.Key, "destination_name", name),
			label(GroupDestinationPerformance, d.Key, "hemisphere", hemisphere),
		)
		out = append(out, rebuildFor(spec, rows[d.Key], d.Key)...)
		row := rows[d.Key]
		out = append(out,
			derived(GroupDestinationPerformance, d.Key, "click_rate_pct",
				pct(row["total_clicks"], row["total_views"])),
			derived(GroupDestinationPerformance, d.Key, "booking_rate_pct",
				pct(row["total_bookings"], row["total_clicks"])),
			derived(GroupDestinationPerformance, d.Key, "booking_rank", bookingRank[d.Key]),
			derived(GroupDestinationPerformance, d.Key, "revenue_rank", revenueRank[d.Key]),
		)
	}
	return out, nil
}

// UserEngagement computes per-user behavior metrics and assigns the customer
// value tier from total spend. Every user appears even without activity.
func (en *Engine) UserEngagement(users, purchases []*models.Entity) ([]models.AggregateMetric, error) {
	spec := GroupSpec{
		Name: GroupUserEngagement,
		Key:  byStringField("user_id"),
		Metrics: []MetricSpec{
			{Name: "total_interactions", Fn: models.FnCount},
			{Name: "total_clicks", Fn: models.FnCount, Filter: clickedFilter},
			{Name: "total_purchases", Fn: models.FnCount, Filter: purchasedFilter},
			{Name: "total_spend_usd", Field: "price_usd", Fn: models.FnSum, Filter: purchasedFilter},
			{Name: "avg_purchase_usd", Field: "price_usd", Fn: models.FnAverage, Filter: purchasedFilter},
			{Name: "destinations_viewed", Field: "destination_id", Fn: models.FnDistinctCount},
			{Name: "destinations_booked", Field: "destination_id", Fn: models.FnDistinctCount, Filter: purchasedFilter},
			{Name: "first_activity", Field: "transaction_timestamp", Fn: models.FnMin},
			{Name: "last_activity", Field: "transaction_timestamp", Fn: models.FnMax},
		},
	}

	base, err := en.Aggregate(spec, purchases)
	if err != nil {
		return nil, err
	}
	_, rows := indexMetrics(base)

	tiers := en.cfg.Tiering
	ordered := sortedByKey(users)
	out := make([]models.AggregateMetric, 0, (len(spec.Metrics)+7)*len(ordered))
	for _, u := range ordered {
		row := rows[u.Key]
		freqSegment, _ := u.String("purchase_frequency_segment")
		priceSegment, _ := u.String("price_segment")
		histPrice, _ := u.Float("avg_price_7day")
		histPurchases, _ := u.Float("purchases_6month")

		out = append(out,
			label(GroupUserEngagement, u.Key, "purchase_frequency_segment", freqSegment),
			label(GroupUserEngagement, u.Key, "price_segment", priceSegment),
			derived(GroupUserEngagement, u.Key, "historical_avg_price", histPrice),
			derived(GroupUserEngagement, u.Key, "historical_purchases", histPurchases),
		)
		out = append(out, rebuildFor(spec, row, u.Key)...)

		spend := row["total_spend_usd"]
		tier := "bronze"
		switch {
		case spend >= tiers.PlatinumMinSpend:
			tier = "platinum"
		case spend >= tiers.GoldMinSpend:
			tier = "gold"
		case spend >= tiers.SilverMinSpend:
			tier = "silver"
		}
		out = append(out,
			derived(GroupUserEngagement, u.Key, "conversion_rate_pct",
				pct(row["total_purchases"], row["total_interactions"])),
			derived(GroupUserEngagement, u.Key, "engagement_days",
				daysBetween(row["first_activity"], row["last_activity"])),
			label(GroupUserEngagement, u.Key, "customer_tier", tier),
		)
	}
	return out, nil
}

// MonthlySummary computes the month-level executive summary, including the
// previous month's revenue for month-over-month comparison.
func (en *Engine) MonthlySummary(purchases []*models.Entity) ([]models.AggregateMetric, error) {
	spec := GroupSpec{
		Name: GroupMonthlySummary,
		Key: func(e *models.Entity) string {
			t, ok := e.Time("transaction_timestamp")
			if !ok {
				return ""
			}
			return t.Format("2006-01")
		},
		Metrics: []MetricSpec{
			{Name: "total_transactions", Fn: models.FnCount},
			{Name: "total_bookings", Fn: models.FnCount, Filter: purchasedFilter},
			{Name: "monthly_revenue_usd", Field: "price_usd", Fn: models.FnSum, Filter: purchasedFilter},
			{Name: "avg_booking_value_usd", Field: "price_usd", Fn: models.FnAverage, Filter: purchasedFilter},
			{Name: "active_users", Field: "user_id", Fn: models.FnDistinctCount},
			{Name: "destinations_in_demand", Field: "destination_id", Fn: models.FnDistinctCount},
		},
	}

	base, err := en.Aggregate(spec, purchases)
	if err != nil {
		return nil, err
	}
	keys, rows := indexMetrics(base)

	out := make([]models.AggregateMetric, 0, len(base)+2*len(keys))
	for i, key := range keys {
		row := rows[key]
		out = append(out, rebuild(base, key)...)
		prevRevenue := 0.0
		if i > 0 {
			prevRevenue = round2(rows[keys[i-1]]["monthly_revenue_usd"])
		}
		out = append(out,
			derived(GroupMonthlySummary, key, "monthly_conversion_pct",
				pct(row["total_bookings"], row["total_transactions"])),
			derived(GroupMonthlySummary, key, "prev_month_revenue", prevRevenue),
		)
	}
	return out, nil
}

// helpers

func byStringField(field string) func(e *models.Entity) string {
	return func(e *models.Entity) string {
		v, _ := e.String(field)
		return v
	}
}

// indexMetrics builds a groupKey -> metric -> value lookup plus the sorted
// key list from an engine result.
func indexMetrics(ms []models.AggregateMetric) ([]string, map[string]map[string]float64) {
	rows := make(map[string]map[string]float64)
	keys := make([]string, 0)
	for _, m := range ms {
		row, ok := rows[m.GroupKey]
		if !ok {
			row = make(map[string]float64)
			rows[m.GroupKey] = row
			keys = append(keys, m.GroupKey)
		}
		row[m.Metric] = m.Value
	}
	sort.Strings(keys)
	return keys, rows
}

// rebuild re-emits the base metrics for one group key, rounding monetary
// values to cents.
func rebuild(base []models.AggregateMetric, key string) []models.AggregateMetric {
	out := make([]models.AggregateMetric, 0)
	for _, m := range base {
		if m.GroupKey != key {
			continue
		}
		m.Value = roundMoney(m.Metric, m.Value)
		out = append(out, m)
	}
	return out
}

// rebuildFor emits the base metrics for a group that may be absent from the
// reduction (a reference record with no activity): missing values are zero.
func rebuildFor(spec GroupSpec, row map[string]float64, key string) []models.AggregateMetric {
	out := make([]models.AggregateMetric, 0, len(spec.Metrics))
	for _, m := range spec.Metrics {
		out = append(out, models.AggregateMetric{
			Group:    spec.Name,
			GroupKey: key,
			Metric:   m.Name,
			Value:    roundMoney(m.Name, row[m.Name]),
			Function: m.Fn,
		})
	}
	return out
}

func derived(group, key, metric string, value float64) models.AggregateMetric {
	return models.AggregateMetric{
		Group:    group,
		GroupKey: key,
		Metric:   metric,
		Value:    value,
		Function: models.FnDerived,
	}
}

func label(group, key, metric, value string) models.AggregateMetric {
	return models.AggregateMetric{
		Group:    group,
		GroupKey: key,
		Metric:   metric,
		Label:    value,
		Function: models.FnDerived,
	}
}

func sortedByKey(entities []*models.Entity) []*models.Entity {
	out := make([]*models.Entity, len(entities))
	copy(out, entities)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// rankDesc assigns competition ranks (1 = highest value, ties share a rank,
// gaps after ties). Ties are ordered by key ascending for determinism.
func rankDesc(values map[string]float64) map[string]float64 {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if values[keys[i]] != values[keys[j]] {
			return values[keys[i]] > values[keys[j]]
		}
		return keys[i] < keys[j]
	})

	ranks := make(map[string]float64, len(keys))
	for i, k := range keys {
		if i > 0 && values[k] == values[keys[i-1]] {
			ranks[k] = ranks[keys[i-1]]
			continue
		}
		ranks[k] = float64(i + 1)
	}
	return ranks
}

func pct(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return round2(numerator * 100 / denominator)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// roundMoney rounds the metrics that carry USD amounts; counts, ranks and
// timestamps pass through unchanged.
func roundMoney(metric string, v float64) float64 {
	switch metric {
	case "total_revenue_usd", "avg_transaction_value_usd", "avg_booking_value_usd",
		"monthly_revenue_usd", "total_spend_usd", "avg_purchase_usd":
		return round2(v)
	default:
		return v
	}
}

func dayTypeOf(dateKey string) string {
	t, err := time.Parse("2006-01-02", dateKey)
	if err != nil {
		return UnknownGroup
	}
	if t.Weekday() == time.Sunday || t.Weekday() == time.Saturday {
		return "weekend"
	}
	return "weekday"
}

func daysBetween(firstUnix, lastUnix float64) float64 {
	if firstUnix == 0 || lastUnix == 0 {
		return 0
	}
	first := time.Unix(int64(firstUnix), 0).UTC().Truncate(24 * time.Hour)
	last := time.Unix(int64(lastUnix), 0).UTC().Truncate(24 * time.Hour)
	return last.Sub(first).Hours() / 24
}

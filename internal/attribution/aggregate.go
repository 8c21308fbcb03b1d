// Package attribution turns GA4 source/medium report rows into per-channel
// revenue metrics, totals and performance classes.
package attribution

import (
	"ga4revenue/internal/api"
)

// Row is one source/medium channel with its derived metrics.
type Row struct {
	Source            string  `json:"source"`
	Medium            string  `json:"medium"`
	Channel           Channel `json:"channel"`
	Visitors          int64   `json:"visitors"`
	Revenue           float64 `json:"revenue"`
	Transactions      int64   `json:"transactions"`
	Purchasers        int64   `json:"purchasers"`
	AverageOrderValue float64 `json:"avg_order_value"`
	ConversionRate    float64 `json:"conversion_rate"`
	RevenuePerVisitor float64 `json:"revenue_per_visitor"`
	RevenueShare      float64 `json:"revenue_share"`

	// Qualified rows have revenue and visitors; only they feed the cohort
	// averages and receive performance classes.
	Qualified              bool             `json:"qualified"`
	RevenuePerVisitorClass PerformanceClass `json:"revenue_per_visitor_class,omitempty"`
	ConversionClass        PerformanceClass `json:"conversion_class,omitempty"`
}

// Totals are sums across all rows plus the rates derived from them.
type Totals struct {
	Visitors          int64   `json:"visitors"`
	Revenue           float64 `json:"revenue"`
	Transactions      int64   `json:"transactions"`
	Purchasers        int64   `json:"purchasers"`
	ConversionRate    float64 `json:"conversion_rate"`
	RevenuePerVisitor float64 `json:"revenue_per_visitor"`
	AverageOrderValue float64 `json:"avg_order_value"`
}

// Result is an aggregated attribution report.
type Result struct {
	PropertyID   string `json:"property_id,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	BasicMetrics bool   `json:"basic_metrics"`
	Rows         []Row  `json:"rows"`
	Totals       Totals `json:"totals"`

	AverageRevenuePerVisitor float64 `json:"average_revenue_per_visitor"`
	AverageConversionRate    float64 `json:"average_conversion_rate"`
	QualifiedRows            int     `json:"qualified_rows"`
}

// Aggregate derives channel rows, totals and performance classes from a raw
// report. A nil report aggregates to an empty result.
func Aggregate(report *api.RawReport) *Result {
	result := &Result{Rows: []Row{}}
	if report == nil {
		return result
	}

	result.PropertyID = report.PropertyID
	result.StartDate = report.StartDate
	result.EndDate = report.EndDate
	result.BasicMetrics = report.BasicMetrics

	var rpvSum, convSum float64
	for _, raw := range report.Rows {
		row := buildRow(raw, report.BasicMetrics)

		result.Totals.Visitors += row.Visitors
		result.Totals.Revenue += row.Revenue
		result.Totals.Transactions += row.Transactions
		result.Totals.Purchasers += row.Purchasers

		if row.Qualified {
			rpvSum += row.RevenuePerVisitor
			convSum += row.ConversionRate
			result.QualifiedRows++
		}
		result.Rows = append(result.Rows, row)
	}

	if result.QualifiedRows > 0 {
		result.AverageRevenuePerVisitor = rpvSum / float64(result.QualifiedRows)
		result.AverageConversionRate = convSum / float64(result.QualifiedRows)
	}

	for i := range result.Rows {
		row := &result.Rows[i]
		row.RevenueShare = percent(row.Revenue, result.Totals.Revenue)
		if row.Qualified {
			row.RevenuePerVisitorClass = Classify(row.RevenuePerVisitor, result.AverageRevenuePerVisitor, MetricRevenuePerVisitor)
			row.ConversionClass = Classify(row.ConversionRate, result.AverageConversionRate, MetricConversion)
		}
	}

	t := &result.Totals
	t.ConversionRate = percent(float64(t.Purchasers), float64(t.Visitors))
	t.RevenuePerVisitor = ratio(t.Revenue, float64(t.Visitors))
	t.AverageOrderValue = ratio(t.Revenue, float64(t.Purchasers))

	return result
}

func buildRow(raw api.Row, basic bool) Row {
	row := Row{
		Source:       raw.Dimension(0),
		Medium:       raw.Dimension(1),
		Visitors:     raw.Int(api.MetricSessions),
		Revenue:      raw.Float(api.MetricTotalRevenue),
		Transactions: raw.Int(api.MetricTransactions),
	}
	row.Channel = ClassifyChannel(row.Source, row.Medium)

	if basic {
		row.Purchasers = row.Transactions
		row.AverageOrderValue = ratio(row.Revenue, float64(row.Transactions))
	} else {
		row.Purchasers = raw.Int(api.MetricPurchasers)
		row.AverageOrderValue = raw.Float(api.MetricAveragePurchaseRevenue)

		if row.Purchasers == 0 && row.Transactions > 0 {
			row.Purchasers = row.Transactions
		}
		if row.AverageOrderValue == 0 {
			row.AverageOrderValue = ratio(row.Revenue, float64(row.Purchasers))
		}
	}

	row.ConversionRate = percent(float64(row.Purchasers), float64(row.Visitors))
	row.RevenuePerVisitor = ratio(row.Revenue, float64(row.Visitors))
	row.Qualified = row.Revenue > 0 && row.Visitors > 0

	return row
}

func ratio(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

func percent(numerator, denominator float64) float64 {
	return ratio(numerator, denominator) * 100
}

package attribution

// ChannelSummary is one channel as sent to the insights model.
type ChannelSummary struct {
	Source            string  `json:"source"`
	Medium            string  `json:"medium"`
	Channel           Channel `json:"channel"`
	Visitors          int64   `json:"visitors"`
	Revenue           float64 `json:"revenue"`
	Transactions      int64   `json:"transactions"`
	Purchasers        int64   `json:"purchasers"`
	ConversionRate    float64 `json:"conversion_rate"`
	RevenuePerVisitor float64 `json:"revenue_per_visitor"`
	AverageOrderValue float64 `json:"avg_order_value"`
	RevenueShare      float64 `json:"revenue_share"`
}

// StructuredData is the compact attribution payload handed to the insights
// client and returned to API callers so they can request an analysis later.
type StructuredData struct {
	StartDate    string           `json:"start_date,omitempty"`
	EndDate      string           `json:"end_date,omitempty"`
	BasicMetrics bool             `json:"basic_metrics"`
	Channels     []ChannelSummary `json:"channels"`
	Totals       Totals           `json:"totals"`
}

// StructuredData summarises every row, qualified or not. The per-channel
// conversion rate sent to the model is transactions per visitor, unlike the
// purchaser-based rate shown in the table.
func (r *Result) StructuredData() StructuredData {
	data := StructuredData{
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		BasicMetrics: r.BasicMetrics,
		Channels:     make([]ChannelSummary, 0, len(r.Rows)),
		Totals:       r.Totals,
	}
	for _, row := range r.Rows {
		data.Channels = append(data.Channels, ChannelSummary{
			Source:            row.Source,
			Medium:            row.Medium,
			Channel:           row.Channel,
			Visitors:          row.Visitors,
			Revenue:           row.Revenue,
			Transactions:      row.Transactions,
			Purchasers:        row.Purchasers,
			ConversionRate:    percent(float64(row.Transactions), float64(row.Visitors)),
			RevenuePerVisitor: row.RevenuePerVisitor,
			AverageOrderValue: row.AverageOrderValue,
			RevenueShare:      row.RevenueShare,
		})
	}
	return data
}

// IsEmpty reports whether there is nothing worth analysing.
func (d StructuredData) IsEmpty() bool {
	return len(d.Channels) == 0
}

package attribution

// PerformanceClass rates a channel metric against the cohort average.
type PerformanceClass string

const (
	PerformanceHigh   PerformanceClass = "high"
	PerformanceMedium PerformanceClass = "medium"
	PerformanceLow    PerformanceClass = "low"
)

// Metric selects the threshold band used by Classify.
type Metric int

const (
	MetricRevenuePerVisitor Metric = iota
	MetricConversion
)

type band struct {
	high float64
	low  float64
}

// Conversion rates are smaller and noisier, so their band is wider.
var bands = map[Metric]band{
	MetricRevenuePerVisitor: {high: 1.2, low: 0.8},
	MetricConversion:        {high: 1.5, low: 0.5},
}

// Classify returns high when value is strictly above the band's upper
// multiple of average, low when strictly below the lower multiple, and
// medium otherwise.
func Classify(value, average float64, metric Metric) PerformanceClass {
	b, ok := bands[metric]
	if !ok {
		b = bands[MetricRevenuePerVisitor]
	}

	switch {
	case value > average*b.high:
		return PerformanceHigh
	case value < average*b.low:
		return PerformanceLow
	default:
		return PerformanceMedium
	}
}

// CSSClass is the indicator class used by the HTML table.
func (p PerformanceClass) CSSClass() string {
	if p == "" {
		return ""
	}
	return "perf-" + string(p)
}

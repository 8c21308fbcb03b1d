package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		average float64
		metric  Metric
		want    PerformanceClass
	}{
		{"rpv above band", 13, 10, MetricRevenuePerVisitor, PerformanceHigh},
		{"rpv below band", 7, 10, MetricRevenuePerVisitor, PerformanceLow},
		{"rpv at average", 10, 10, MetricRevenuePerVisitor, PerformanceMedium},
		{"rpv at upper edge", 12, 10, MetricRevenuePerVisitor, PerformanceMedium},
		{"rpv at lower edge", 8, 10, MetricRevenuePerVisitor, PerformanceMedium},
		{"conversion above band", 3.5, 2, MetricConversion, PerformanceHigh},
		{"conversion below band", 0.9, 2, MetricConversion, PerformanceLow},
		{"conversion at average", 2, 2, MetricConversion, PerformanceMedium},
		{"conversion at upper edge", 3, 2, MetricConversion, PerformanceMedium},
		{"conversion at lower edge", 1, 2, MetricConversion, PerformanceMedium},
		{"conversion between bands", 2.8, 2, MetricConversion, PerformanceMedium},
		{"zero average", 0, 0, MetricRevenuePerVisitor, PerformanceMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.value, tt.average, tt.metric))
		})
	}
}

func TestPerformanceClassCSS(t *testing.T) {
	assert.Equal(t, "perf-high", PerformanceHigh.CSSClass())
	assert.Equal(t, "perf-low", PerformanceLow.CSSClass())
	assert.Equal(t, "", PerformanceClass("").CSSClass())
}

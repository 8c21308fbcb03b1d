package insights

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// requiredFields must all be present, and non-null, in the model's JSON.
var requiredFields = []string{
	"overall_score",
	"summary",
	"key_metrics",
	"insights",
	"recommendations",
	"opportunities",
	"warnings",
}

// Text is a string field that also accepts the numbers and booleans models
// sometimes emit in its place.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v.(type) {
	case float64, bool:
		*t = Text(string(data))
		return nil
	}
	return fmt.Errorf("expected a string, got %s", string(data))
}

// Score is the 0-100 overall score. Models return it as a number or as a
// numeric string; either is clamped into range.
type Score int

func (s *Score) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var value float64
	switch v := raw.(type) {
	case float64:
		value = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "/100"), 64)
		if err != nil {
			return fmt.Errorf("overall_score %q is not numeric", v)
		}
		value = parsed
	default:
		return fmt.Errorf("overall_score must be a number, got %s", string(data))
	}

	value = math.Max(0, math.Min(100, math.Round(value)))
	*s = Score(value)
	return nil
}

// KeyMetrics are the headline figures the model picked out.
type KeyMetrics struct {
	BestPerformingChannel  Text `json:"best_performing_channel"`
	WorstPerformingChannel Text `json:"worst_performing_channel"`
	TotalRevenue           Text `json:"total_revenue"`
	AverageOrderValue      Text `json:"average_order_value"`
	ConversionRate         Text `json:"conversion_rate"`
}

type Insight struct {
	Title       Text `json:"title"`
	Description Text `json:"description"`
	Impact      Text `json:"impact"`
	Metric      Text `json:"metric"`
}

type Recommendation struct {
	Title          Text `json:"title"`
	Description    Text `json:"description"`
	Priority       Text `json:"priority"`
	ExpectedImpact Text `json:"expected_impact"`
	Effort         Text `json:"effort"`
}

type Opportunity struct {
	Channel            Text `json:"channel"`
	CurrentPerformance Text `json:"current_performance"`
	Potential          Text `json:"potential"`
	Action             Text `json:"action"`
}

type Warning struct {
	Issue           Text `json:"issue"`
	Severity        Text `json:"severity"`
	AffectedChannel Text `json:"affected_channel"`
	Recommendation  Text `json:"recommendation"`
}

// Report is a validated insights response.
type Report struct {
	RunID           string           `json:"run_id"`
	Model           string           `json:"model"`
	WindowDays      int              `json:"window_days"`
	GeneratedAt     time.Time        `json:"generated_at"`
	OverallScore    Score            `json:"overall_score"`
	Summary         Text             `json:"summary"`
	KeyMetrics      KeyMetrics       `json:"key_metrics"`
	Insights        []Insight        `json:"insights"`
	Recommendations []Recommendation `json:"recommendations"`
	Opportunities   []Opportunity    `json:"opportunities"`
	Warnings        []Warning        `json:"warnings"`
}

// ParseReport validates the model's JSON content against the response
// schema and decodes it.
func ParseReport(content string) (*Report, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}

	var missing []string
	for _, name := range requiredFields {
		raw, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("response is missing required fields: %s", strings.Join(missing, ", "))
	}

	var report Report
	if err := json.Unmarshal([]byte(content), &report); err != nil {
		return nil, fmt.Errorf("response does not match the expected shape: %w", err)
	}
	return &report, nil
}

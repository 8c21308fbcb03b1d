package insights

import (
	"encoding/json"
	"fmt"
	"strings"

	"ga4revenue/internal/attribution"
)

const systemPrompt = "You are an expert digital marketing analyst specializing in revenue attribution and conversion optimization. Provide actionable insights based on Google Analytics data. Always respond in valid JSON format."

const responseSchema = `{
    "overall_score": "A score from 0-100 indicating overall marketing performance",
    "summary": "A 2-3 sentence executive summary of key findings",
    "key_metrics": {
        "best_performing_channel": "Channel name",
        "worst_performing_channel": "Channel name",
        "total_revenue": "Total revenue amount",
        "average_order_value": "Average order value",
        "conversion_rate": "Overall conversion rate percentage"
    },
    "insights": [
        {
            "title": "Key insight title",
            "description": "Detailed explanation",
            "impact": "high/medium/low",
            "metric": "Supporting metric or data point"
        }
    ],
    "recommendations": [
        {
            "title": "Actionable recommendation",
            "description": "Detailed steps to implement",
            "priority": "high/medium/low",
            "expected_impact": "Expected outcome",
            "effort": "high/medium/low"
        }
    ],
    "opportunities": [
        {
            "channel": "Channel/source name",
            "current_performance": "Current metrics",
            "potential": "Growth potential explanation",
            "action": "Specific action to take"
        }
    ],
    "warnings": [
        {
            "issue": "Problem identified",
            "severity": "high/medium/low",
            "affected_channel": "Channel name",
            "recommendation": "How to fix"
        }
    ]
}`

var focusAreas = []string{
	"Revenue optimization opportunities",
	"Underperforming channels that need attention",
	"High-performing channels to scale",
	"Conversion rate optimization tactics",
	"Budget allocation recommendations",
	"Seasonal or trend-based insights",
}

// BuildPrompt renders the user message for an analysis of data covering
// windowDays days.
func BuildPrompt(data attribution.StructuredData, windowDays int) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal structured data: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following Google Analytics revenue attribution data for the last %d days and provide strategic insights:\n\n", windowDays)
	if data.BasicMetrics {
		b.WriteString("Note: this property does not report purchasers, so purchasers equal transactions.\n\n")
	}
	b.WriteString("REVENUE DATA:\n")
	b.Write(payload)
	b.WriteString("\n\nPlease provide a comprehensive analysis in the following JSON structure:\n")
	b.WriteString(responseSchema)
	b.WriteString("\n\nFocus on:\n")
	for i, area := range focusAreas {
		fmt.Fprintf(&b, "%d. %s\n", i+1, area)
	}
	return b.String(), nil
}

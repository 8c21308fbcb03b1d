// Package render produces the HTML fragments shown for an attribution report
// and an insights analysis.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"

	"ga4revenue/internal/attribution"
	"ga4revenue/internal/insights"
)

var funcs = template.FuncMap{
	"money":   FormatMoney,
	"count":   FormatCount,
	"percent": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) + "%" },
	"share":   func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + "%" },
	"bar":     func(v float64) string { return strconv.FormatFloat(math.Min(v, 100), 'f', 1, 64) },
	"title":   titleCase,
}

var (
	tableTemplate    = template.Must(template.New("attribution").Funcs(funcs).Parse(attributionTableHTML))
	insightsTemplate = template.Must(template.New("insights").Funcs(funcs).Parse(insightsHTML))
)

type tableView struct {
	*attribution.Result
	Columns   int
	ShowTotal bool
}

// AttributionTable renders the source/medium table with its totals row and
// legend.
func AttributionTable(result *attribution.Result) (string, error) {
	if result == nil {
		result = attribution.Aggregate(nil)
	}

	view := tableView{
		Result:    result,
		Columns:   8,
		ShowTotal: result.Totals.Revenue > 0,
	}
	if result.BasicMetrics {
		view.Columns = 7
	}

	var buf bytes.Buffer
	if err := tableTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render attribution table: %w", err)
	}
	return buf.String(), nil
}

// Insights renders an insights report.
func Insights(report *insights.Report) (string, error) {
	if report == nil {
		return "", fmt.Errorf("no insights report to render")
	}

	var buf bytes.Buffer
	if err := insightsTemplate.Execute(&buf, report); err != nil {
		return "", fmt.Errorf("failed to render insights: %w", err)
	}
	return buf.String(), nil
}

// FormatMoney renders v as $1,234.56.
func FormatMoney(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")
	return sign + "$" + groupThousands(whole) + "." + frac
}

// FormatCount renders n with thousands separators.
func FormatCount(n int64) string {
	if n < 0 {
		return "-" + groupThousands(strconv.FormatInt(-n, 10))
	}
	return groupThousands(strconv.FormatInt(n, 10))
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func titleCase(s insights.Text) string {
	str := strings.TrimSpace(string(s))
	if str == "" {
		return ""
	}
	return strings.ToUpper(str[:1]) + str[1:]
}

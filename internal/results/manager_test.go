package results

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ga4revenue/internal/api"
	"ga4revenue/internal/apperr"
	"ga4revenue/internal/attribution"
	"ga4revenue/internal/cache"
)

func row(source, medium string, metrics ...string) api.Row {
	r := api.Row{DimensionValues: []api.DimensionValue{{Value: source}, {Value: medium}}}
	for _, m := range metrics {
		r.MetricValues = append(r.MetricValues, api.MetricValue{Value: m})
	}
	return r
}

func sampleResult(basic bool) *attribution.Result {
	report := &api.RawReport{
		PropertyID:   "123",
		StartDate:    "2026-01-01",
		EndDate:      "2026-01-31",
		BasicMetrics: basic,
	}
	if basic {
		report.Rows = []api.Row{
			row("google", "cpc", "1000", "5000", "50"),
			row("newsletter", "email", "200", "1000", "10"),
		}
	} else {
		report.Rows = []api.Row{
			row("google", "cpc", "1000", "5000", "50", "40", "125"),
			row("newsletter", "email", "200", "1000", "10", "10", "100"),
			row("(direct)", "(none)", "300", "0", "0", "0", "0"),
		}
	}
	return attribution.Aggregate(report)
}

func readCSV(t *testing.T, data string, comma rune) [][]string {
	t.Helper()
	reader := csv.NewReader(strings.NewReader(data))
	reader.Comma = comma
	records, err := reader.ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(false), ExportOptions{Format: FormatCSV}))

	records := readCSV(t, buf.String(), ',')
	require.Len(t, records, 5, "header, three rows, totals")

	assert.Equal(t, []string{
		"source", "medium", "channel", "visitors", "revenue", "revenue_share", "revenue_per_visitor",
		"conversion_rate", "transactions", "purchasers", "avg_order_value", "rpv_class", "conversion_class",
	}, records[0])

	google := records[1]
	assert.Equal(t, "google", google[0])
	assert.Equal(t, "paid", google[2])
	assert.Equal(t, "1000", google[3])
	assert.Equal(t, "5000.00", google[4])
	assert.Equal(t, "83.33", google[5])
	assert.Equal(t, "4.00", google[7])
	assert.Equal(t, "50", google[8])
	assert.Equal(t, "40", google[9])

	direct := records[3]
	assert.Equal(t, "(direct)", direct[0])
	assert.Equal(t, "", direct[11], "unqualified rows carry no class")

	totals := records[4]
	assert.Equal(t, "TOTAL", totals[0])
	assert.Equal(t, "1500", totals[3])
	assert.Equal(t, "6000.00", totals[4])
	assert.Equal(t, "", totals[5])
	assert.Equal(t, "50", totals[9])
}

func TestWriteTSVBasicMetrics(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(true), ExportOptions{Format: FormatTSV, NoTotals: true}))

	records := readCSV(t, buf.String(), '\t')
	require.Len(t, records, 3)
	assert.NotContains(t, records[0], "purchasers")
	assert.NotContains(t, records[0], "avg_order_value")
	assert.Len(t, records[1], 11)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(false), ExportOptions{Format: FormatJSON, Prettify: true, MaxRows: 1}))

	assert.Contains(t, buf.String(), "\n  \"property_id\"")

	var decoded attribution.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded.Rows, 1)
	assert.Equal(t, int64(1500), decoded.Totals.Visitors, "totals cover every row")
}

func TestWriteRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer

	err := Write(&buf, sampleResult(false), ExportOptions{Format: "xlsx"})
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))

	err = Write(&buf, nil, ExportOptions{Format: FormatCSV})
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
}

func TestExportCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "january", "attribution.csv")

	require.NoError(t, Export(sampleResult(false), ExportOptions{Format: FormatCSV, OutputPath: path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "source,medium,channel"))
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]ExportFormat{"csv": FormatCSV, ".json": FormatJSON, "TSV": FormatTSV} {
		got, ok := ParseFormat(input)
		assert.True(t, ok, input)
		assert.Equal(t, want, got)
	}

	_, ok := ParseFormat("xlsx")
	assert.False(t, ok)
}

func TestFormatResultTable(t *testing.T) {
	opts := DefaultDisplayOptions()
	lines := FormatResultTable(sampleResult(false), opts)

	require.Len(t, lines, 6, "header, separator, three rows, totals")
	assert.Contains(t, lines[0], "revenue_per_visitor")
	assert.Contains(t, lines[2], "$5,000.00")
	assert.Contains(t, lines[2], "1,000")
	assert.Contains(t, lines[5], "TOTAL")

	for _, line := range lines[1:] {
		assert.Equal(t, len(lines[0]), len(line))
	}

	opts.MaxRows = 1
	lines = FormatResultTable(sampleResult(false), opts)
	assert.Equal(t, "Showing 1 of 3 rows", lines[len(lines)-1])

	assert.Equal(t, []string{"No revenue data found for this period"}, FormatResultTable(attribution.Aggregate(nil), opts))
}

func TestListResults(t *testing.T) {
	ctx := context.Background()

	client, err := cache.Open(filepath.Join(t.TempDir(), "results.db"), "results")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.CacheReport(ctx, "a", "123", api.ReportKindAttribution, map[string]int{}, 3, time.Hour))
	require.NoError(t, client.CacheReport(ctx, "b", "456", api.ReportKindAttribution, map[string]int{}, 5, time.Hour))

	manager := NewManager(client)

	all, err := manager.ListResults(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := manager.ListResults(ctx, "456", 0)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, 5, filtered[0].RowCount)
	assert.False(t, filtered[0].IsExpired)

	limited, err := manager.ListResults(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	empty, err := NewManager(nil).ListResults(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

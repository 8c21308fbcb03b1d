package results

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ga4revenue/internal/apperr"
	"ga4revenue/internal/attribution"
	"ga4revenue/internal/cache"
	"ga4revenue/internal/render"
)

// Manager lists the attribution reports held in a preset's cache
type Manager struct {
	cacheClient *cache.CacheClient
}

// NewManager creates a new results manager
func NewManager(cacheClient *cache.CacheClient) *Manager {
	return &Manager{
		cacheClient: cacheClient,
	}
}

// ListResults returns cached reports, newest first. An empty propertyID
// matches every property; limit <= 0 means no limit.
func (m *Manager) ListResults(ctx context.Context, propertyID string, limit int) ([]ResultSummary, error) {
	if m.cacheClient == nil {
		return []ResultSummary{}, nil
	}

	entries, err := m.cacheClient.ListEntries(ctx)
	if err != nil {
		return nil, err
	}

	summaries := []ResultSummary{}
	for _, entry := range entries {
		if propertyID != "" && entry.PropertyID != propertyID {
			continue
		}
		summaries = append(summaries, ResultSummary{
			EntryID:      entry.EntryID,
			CacheKey:     entry.CacheKey,
			PropertyID:   entry.PropertyID,
			ReportKind:   entry.ReportKind,
			RowCount:     entry.RowCount,
			CreatedAt:    entry.CreatedAt,
			LastAccessed: entry.LastAccessed,
			ExpiresAt:    entry.ExpiresAt,
			IsExpired:    entry.Expired,
		})
		if limit > 0 && len(summaries) == limit {
			break
		}
	}

	return summaries, nil
}

// Export writes result to opts.OutputPath in opts.Format, creating parent
// directories as needed
func Export(result *attribution.Result, opts ExportOptions) error {
	if strings.TrimSpace(opts.OutputPath) == "" {
		return apperr.New(apperr.InvalidInput, "an output path is required")
	}
	if _, ok := ParseFormat(string(opts.Format)); !ok {
		return apperr.Newf(apperr.InvalidInput, "unsupported export format %q (use csv, tsv or json)", opts.Format)
	}

	// Create output directory if needed
	dir := filepath.Dir(opts.OutputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(opts.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to create %s file: %w", opts.Format, err)
	}
	defer file.Close()

	if err := Write(file, result, opts); err != nil {
		return err
	}

	return file.Close()
}

// Write encodes result to w in opts.Format
func Write(w io.Writer, result *attribution.Result, opts ExportOptions) error {
	if result == nil {
		return apperr.New(apperr.InvalidInput, "no attribution result to export")
	}

	format, ok := ParseFormat(string(opts.Format))
	if !ok {
		return apperr.Newf(apperr.InvalidInput, "unsupported export format %q (use csv, tsv or json)", opts.Format)
	}

	switch format {
	case FormatJSON:
		return writeJSON(w, limitRows(result, opts.MaxRows), opts.Prettify)
	case FormatTSV:
		return writeDelimited(w, limitRows(result, opts.MaxRows), '\t', !opts.NoTotals)
	default:
		return writeDelimited(w, limitRows(result, opts.MaxRows), ',', !opts.NoTotals)
	}
}

func writeDelimited(w io.Writer, result *attribution.Result, comma rune, withTotals bool) error {
	writer := csv.NewWriter(w)
	writer.Comma = comma

	cols := columns(result.BasicMetrics)

	headers := make([]string, len(cols))
	for i, col := range cols {
		headers[i] = col.header
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i := range result.Rows {
		record := make([]string, len(cols))
		for j, col := range cols {
			record[j] = col.row(&result.Rows[i]).raw()
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	if withTotals {
		if err := writer.Write(totalsRecord(cols, &result.Totals, cell.raw)); err != nil {
			return fmt.Errorf("failed to write totals: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeJSON(w io.Writer, result *attribution.Result, prettify bool) error {
	encoder := json.NewEncoder(w)
	if prettify {
		encoder.SetIndent("", "  ")
	}

	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}

	return nil
}

// limitRows returns a shallow copy holding at most maxRows rows. Totals still
// cover every row.
func limitRows(result *attribution.Result, maxRows int) *attribution.Result {
	if maxRows <= 0 || len(result.Rows) <= maxRows {
		return result
	}
	limited := *result
	limited.Rows = result.Rows[:maxRows]
	return &limited
}

// FormatResultTable formats an attribution result for console display
func FormatResultTable(result *attribution.Result, opts TableDisplayOptions) []string {
	if result == nil || len(result.Rows) == 0 {
		return []string{"No revenue data found for this period"}
	}

	display := func(c cell) string { return c.display(opts.NumberFormat) }
	cols := columns(result.BasicMetrics)

	headers := make([]string, len(cols))
	for i, col := range cols {
		headers[i] = col.header
	}

	// Limit rows for display
	displayRows := result.Rows
	if opts.MaxRows > 0 && len(displayRows) > opts.MaxRows {
		displayRows = displayRows[:opts.MaxRows]
	}

	records := make([][]string, 0, len(displayRows)+1)
	for i := range displayRows {
		record := make([]string, len(cols))
		for j, col := range cols {
			record[j] = display(col.row(&displayRows[i]))
		}
		records = append(records, record)
	}
	if opts.ShowTotals && result.Totals.Revenue > 0 {
		records = append(records, totalsRecord(cols, &result.Totals, display))
	}

	// Calculate column widths
	colWidths := make([]int, len(headers))
	for i, header := range headers {
		colWidths[i] = len(header)
	}
	for _, record := range records {
		for i, value := range record {
			if len(value) > colWidths[i] {
				colWidths[i] = len(value)
			}
		}
	}
	if opts.MaxColWidth > 0 {
		for i := range colWidths {
			colWidths[i] = min(colWidths[i], opts.MaxColWidth)
		}
	}

	var lines []string

	// Header line
	headerParts := make([]string, len(headers))
	for i, header := range headers {
		headerParts[i] = padOrTruncate(header, colWidths[i])
	}
	lines = append(lines, "| "+strings.Join(headerParts, " | ")+" |")

	// Separator line
	separatorParts := make([]string, len(headers))
	for i, width := range colWidths {
		separatorParts[i] = strings.Repeat("-", width+2)
	}
	lines = append(lines, "|"+strings.Join(separatorParts, "|")+"|")

	for _, record := range records {
		rowParts := make([]string, len(record))
		for i, value := range record {
			rowParts[i] = padOrTruncate(value, colWidths[i])
		}
		lines = append(lines, "| "+strings.Join(rowParts, " | ")+" |")
	}

	// Add summary if rows were truncated
	if len(displayRows) < len(result.Rows) {
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("Showing %d of %d rows", len(displayRows), len(result.Rows)))
	}

	return lines
}

type cellKind int

const (
	kindText cellKind = iota
	kindCount
	kindMoney
	kindPercent
)

type cell struct {
	kind cellKind
	text string
	num  float64
}

func text(s string) cell { return cell{kind: kindText, text: s} }
func count(n int64) cell { return cell{kind: kindCount, num: float64(n)} }
func money(v float64) cell { return cell{kind: kindMoney, num: v} }
func percentage(v float64) cell { return cell{kind: kindPercent, num: v} }

// raw is the machine-readable form used in exports
func (c cell) raw() string {
	switch c.kind {
	case kindText:
		return c.text
	case kindCount:
		return strconv.FormatInt(int64(c.num), 10)
	default:
		return strconv.FormatFloat(c.num, 'f', 2, 64)
	}
}

func (c cell) display(numberFormat bool) string {
	if !numberFormat {
		return c.raw()
	}
	switch c.kind {
	case kindCount:
		return render.FormatCount(int64(c.num))
	case kindMoney:
		return render.FormatMoney(c.num)
	case kindPercent:
		return strconv.FormatFloat(c.num, 'f', 2, 64) + "%"
	default:
		return c.text
	}
}

type column struct {
	header string
	row    func(*attribution.Row) cell
	total  func(*attribution.Totals) cell // nil leaves the totals cell empty
}

// columns lists the export columns. Purchaser columns are left out when the
// property only reported the basic metric set.
func columns(basic bool) []column {
	cols := []column{
		{header: "source", row: func(r *attribution.Row) cell { return text(r.Source) }},
		{header: "medium", row: func(r *attribution.Row) cell { return text(r.Medium) }},
		{header: "channel", row: func(r *attribution.Row) cell { return text(string(r.Channel)) }},
		{
			header: "visitors",
			row:    func(r *attribution.Row) cell { return count(r.Visitors) },
			total:  func(t *attribution.Totals) cell { return count(t.Visitors) },
		},
		{
			header: "revenue",
			row:    func(r *attribution.Row) cell { return money(r.Revenue) },
			total:  func(t *attribution.Totals) cell { return money(t.Revenue) },
		},
		{header: "revenue_share", row: func(r *attribution.Row) cell { return percentage(r.RevenueShare) }},
		{
			header: "revenue_per_visitor",
			row:    func(r *attribution.Row) cell { return money(r.RevenuePerVisitor) },
			total:  func(t *attribution.Totals) cell { return money(t.RevenuePerVisitor) },
		},
		{
			header: "conversion_rate",
			row:    func(r *attribution.Row) cell { return percentage(r.ConversionRate) },
			total:  func(t *attribution.Totals) cell { return percentage(t.ConversionRate) },
		},
		{
			header: "transactions",
			row:    func(r *attribution.Row) cell { return count(r.Transactions) },
			total:  func(t *attribution.Totals) cell { return count(t.Transactions) },
		},
	}

	if !basic {
		cols = append(cols,
			column{
				header: "purchasers",
				row:    func(r *attribution.Row) cell { return count(r.Purchasers) },
				total:  func(t *attribution.Totals) cell { return count(t.Purchasers) },
			},
			column{
				header: "avg_order_value",
				row:    func(r *attribution.Row) cell { return money(r.AverageOrderValue) },
				total:  func(t *attribution.Totals) cell { return money(t.AverageOrderValue) },
			},
		)
	}

	return append(cols,
		column{header: "rpv_class", row: func(r *attribution.Row) cell { return text(string(r.RevenuePerVisitorClass)) }},
		column{header: "conversion_class", row: func(r *attribution.Row) cell { return text(string(r.ConversionClass)) }},
	)
}

func totalsRecord(cols []column, totals *attribution.Totals, format func(cell) string) []string {
	record := make([]string, len(cols))
	record[0] = "TOTAL"
	for i, col := range cols {
		if col.total != nil {
			record[i] = format(col.total(totals))
		}
	}
	return record
}

// Helper functions
func padOrTruncate(s string, width int) string {
	if len(s) > width {
		if width > 3 {
			return s[:width-3] + "..."
		}
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

package results

import (
	"strings"
	"time"
)

// ResultSummary represents a cached attribution report
type ResultSummary struct {
	EntryID      string    `json:"entry_id"`
	CacheKey     string    `json:"cache_key"`
	PropertyID   string    `json:"property_id"`
	ReportKind   string    `json:"report_kind"`
	RowCount     int       `json:"row_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsExpired    bool      `json:"is_expired"`
}

// ExportFormat represents supported export formats
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
	FormatTSV  ExportFormat = "tsv"
)

// ExportOptions represents options for data export
type ExportOptions struct {
	Format     ExportFormat `json:"format"`
	OutputPath string       `json:"output_path"`
	Prettify   bool         `json:"prettify,omitempty"`  // For JSON format
	NoTotals   bool         `json:"no_totals,omitempty"` // Skip the totals line (CSV/TSV)
	MaxRows    int          `json:"max_rows,omitempty"`  // Limit exported rows
}

// TableDisplayOptions represents options for formatting console output
type TableDisplayOptions struct {
	MaxRows      int  `json:"max_rows"`      // Maximum rows to display
	MaxColWidth  int  `json:"max_col_width"` // Maximum column width
	ShowTotals   bool `json:"show_totals"`   // Show total/summary rows
	NumberFormat bool `json:"number_format"` // Format numbers with commas
}

// DefaultDisplayOptions returns sensible defaults for table display
func DefaultDisplayOptions() TableDisplayOptions {
	return TableDisplayOptions{
		MaxRows:      50,
		MaxColWidth:  30,
		ShowTotals:   true,
		NumberFormat: true,
	}
}

// ParseFormat accepts a format name or a file extension
func ParseFormat(value string) (ExportFormat, bool) {
	format := ExportFormat(strings.ToLower(strings.TrimPrefix(value, ".")))
	switch format {
	case FormatCSV, FormatJSON, FormatTSV:
		return format, true
	}
	return "", false
}

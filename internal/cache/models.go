package cache

import "time"

// Entry summarises one cached report
type Entry struct {
	CacheKey     string    `json:"cache_key"`
	EntryID      string    `json:"entry_id"`
	PropertyID   string    `json:"property_id"`
	ReportKind   string    `json:"report_kind"`
	RowCount     int       `json:"row_count"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastAccessed time.Time `json:"last_accessed"`
	Expired      bool      `json:"expired"`
}

// Stats represents cache performance and storage statistics for one preset
type Stats struct {
	Name           string     `json:"name"`
	Path           string     `json:"path"`
	TotalHits      int64      `json:"total_hits"`
	TotalMisses    int64      `json:"total_misses"`
	HitRate        float64    `json:"hit_rate"` // percent
	Entries        int        `json:"entries"`
	ActiveEntries  int        `json:"active_entries"`
	ExpiredEntries int        `json:"expired_entries"`
	TotalRows      int64      `json:"total_rows"`
	LastCleanup    *time.Time `json:"last_cleanup,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog/log"

	"ga4revenue/internal/config"
)

// CacheClient handles DuckDB-based report caching for one preset
type CacheClient struct {
	db        *sql.DB
	name      string
	cachePath string
	now       func() time.Time
}

// NewCacheClient opens (or creates) the cache database of a preset under the
// config cache directory
func NewCacheClient(presetName string) (*CacheClient, error) {
	cacheDir, err := config.GetCacheDir()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return Open(filepath.Join(cacheDir, presetName+".db"), presetName)
}

// RemoveCache deletes a preset's cache database and its write-ahead log.
// A missing file is not an error.
func RemoveCache(presetName string) error {
	cacheDir, err := config.GetCacheDir()
	if err != nil {
		return err
	}

	base := filepath.Join(cacheDir, presetName+".db")
	for _, path := range []string{base, base + ".wal"} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove cache file: %w", err)
		}
	}
	return nil
}

// Open connects to the DuckDB file at path and prepares the cache tables
func Open(path, name string) (*CacheClient, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB connection: %w", err)
	}

	client := &CacheClient{
		db:        db,
		name:      name,
		cachePath: path,
		now:       time.Now,
	}

	if err := client.initializeTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache tables: %w", err)
	}

	return client, nil
}

// Path returns the database file location
func (c *CacheClient) Path() string {
	return c.cachePath
}

// Close closes the database connection
func (c *CacheClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *CacheClient) initializeTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS report_cache (
			cache_key VARCHAR PRIMARY KEY,
			entry_id VARCHAR NOT NULL,
			property_id VARCHAR NOT NULL,
			report_kind VARCHAR NOT NULL,  -- 'attribution'
			payload TEXT NOT NULL,         -- JSON-encoded report
			row_count INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			last_accessed TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS cache_stats (
			cache_name VARCHAR PRIMARY KEY,
			total_hits BIGINT DEFAULT 0,
			total_misses BIGINT DEFAULT 0,
			last_cleanup TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := c.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	now := c.timestamp()
	_, err := c.db.Exec(`
		INSERT OR IGNORE INTO cache_stats (cache_name, created_at, updated_at)
		VALUES (?, ?, ?)
	`, c.name, now, now)

	return err
}

// CacheReport stores a JSON-encoded report under cacheKey for ttl, replacing
// any previous entry
func (c *CacheClient) CacheReport(ctx context.Context, cacheKey, propertyID, reportKind string, payload interface{}, rowCount int, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	now := c.timestamp()
	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO report_cache
		(cache_key, entry_id, property_id, report_kind, payload, row_count, created_at, expires_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cacheKey, uuid.NewString(), propertyID, reportKind, string(jsonData), rowCount, now, now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}

	return nil
}

// GetCachedReport decodes a live entry into result. Expired entries count as
// a miss and are removed.
func (c *CacheClient) GetCachedReport(ctx context.Context, cacheKey string, result interface{}) (bool, error) {
	var data string
	var expiresAt time.Time

	err := c.db.QueryRowContext(ctx, `
		SELECT payload, expires_at
		FROM report_cache
		WHERE cache_key = ?
	`, cacheKey).Scan(&data, &expiresAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.incrementMisses(ctx)
			return false, nil
		}
		return false, fmt.Errorf("failed to query cache: %w", err)
	}

	now := c.timestamp()
	if !now.Before(expiresAt) {
		c.incrementMisses(ctx)
		if _, err := c.db.ExecContext(ctx, `DELETE FROM report_cache WHERE cache_key = ?`, cacheKey); err != nil {
			log.Debug().Err(err).Str("cache_key", cacheKey).Msg("Failed to drop expired cache entry")
		}
		return false, nil
	}

	if err := json.Unmarshal([]byte(data), result); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, `
		UPDATE report_cache
		SET last_accessed = ?
		WHERE cache_key = ?
	`, now, cacheKey); err != nil {
		log.Debug().Err(err).Str("cache_key", cacheKey).Msg("Failed to update cache access time")
	}

	c.incrementHits(ctx)
	return true, nil
}

// ListEntries returns the cached reports, newest first
func (c *CacheClient) ListEntries(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT cache_key, entry_id, property_id, report_kind, row_count,
		       created_at, expires_at, last_accessed
		FROM report_cache
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	now := c.timestamp()
	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		err := rows.Scan(
			&entry.CacheKey, &entry.EntryID, &entry.PropertyID, &entry.ReportKind, &entry.RowCount,
			&entry.CreatedAt, &entry.ExpiresAt, &entry.LastAccessed,
		)
		if err != nil {
			return nil, err
		}
		entry.Expired = !now.Before(entry.ExpiresAt)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Stats returns cache performance statistics
func (c *CacheClient) Stats(ctx context.Context) (*Stats, error) {
	stats := Stats{Name: c.name, Path: c.cachePath}

	var lastCleanup sql.NullTime
	err := c.db.QueryRowContext(ctx, `
		SELECT total_hits, total_misses, last_cleanup, created_at, updated_at
		FROM cache_stats
		WHERE cache_name = ?
	`, c.name).Scan(
		&stats.TotalHits, &stats.TotalMisses, &lastCleanup,
		&stats.CreatedAt, &stats.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache stats: %w", err)
	}
	if lastCleanup.Valid {
		stats.LastCleanup = &lastCleanup.Time
	}

	total := stats.TotalHits + stats.TotalMisses
	if total > 0 {
		stats.HitRate = float64(stats.TotalHits) / float64(total) * 100
	}

	var entries, expired int
	err = c.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE expires_at <= ?),
		       CAST(COALESCE(SUM(row_count), 0) AS BIGINT)
		FROM report_cache
	`, c.timestamp()).Scan(&entries, &expired, &stats.TotalRows)
	if err != nil {
		return nil, fmt.Errorf("failed to count cache entries: %w", err)
	}

	stats.Entries = entries
	stats.ExpiredEntries = expired
	stats.ActiveEntries = entries - expired

	return &stats, nil
}

// CleanupExpired removes expired entries and reports how many went
func (c *CacheClient) CleanupExpired(ctx context.Context) (int, error) {
	now := c.timestamp()
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM report_cache
		WHERE expires_at <= ?
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}

	deleted, _ := result.RowsAffected()

	_, err = c.db.ExecContext(ctx, `
		UPDATE cache_stats
		SET last_cleanup = ?, updated_at = ?
		WHERE cache_name = ?
	`, now, now, c.name)

	return int(deleted), err
}

// Clear removes every entry and resets the hit counters
func (c *CacheClient) Clear(ctx context.Context) (int, error) {
	result, err := c.db.ExecContext(ctx, `DELETE FROM report_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}

	deleted, _ := result.RowsAffected()

	_, err = c.db.ExecContext(ctx, `
		UPDATE cache_stats
		SET total_hits = 0, total_misses = 0, updated_at = ?
		WHERE cache_name = ?
	`, c.timestamp(), c.name)

	return int(deleted), err
}

// timestamp is the clock reading stored in TIMESTAMP columns, which carry no
// zone
func (c *CacheClient) timestamp() time.Time {
	return c.now().UTC().Truncate(time.Microsecond)
}

// Helper methods for cache statistics
func (c *CacheClient) incrementHits(ctx context.Context) {
	c.bumpCounter(ctx, "total_hits")
}

func (c *CacheClient) incrementMisses(ctx context.Context) {
	c.bumpCounter(ctx, "total_misses")
}

func (c *CacheClient) bumpCounter(ctx context.Context, column string) {
	query := fmt.Sprintf(`
		UPDATE cache_stats
		SET %[1]s = %[1]s + 1, updated_at = ?
		WHERE cache_name = ?
	`, column)
	if _, err := c.db.ExecContext(ctx, query, c.timestamp(), c.name); err != nil {
		log.Debug().Err(err).Str("counter", column).Msg("Failed to update cache stats")
	}
}

package perf

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/batonhq/baton/pkg/models"
)

// Store persists performance profiles and run history to SQLite so
// learned characteristics survive process restarts.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// DefaultDBPath returns the XDG data path for the baton database.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "baton", "baton.db")
}

// OpenStore opens (or creates) the SQLite store at the given path.
// WAL mode is enabled for concurrent reads.
func OpenStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// migrate applies pending schema migrations.
func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Profiles},
		{2, migrationV2History},
		{3, migrationV3Cache},
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Profiles = `
CREATE TABLE IF NOT EXISTS profiles (
	item TEXT PRIMARY KEY,
	avg_duration_ns INTEGER NOT NULL DEFAULT 0,
	avg_cost REAL NOT NULL DEFAULT 0.0,
	success_rate REAL NOT NULL DEFAULT 0.0,
	samples INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL
);
`

const migrationV2History = `
CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	plan_id TEXT NOT NULL,
	recorded_at DATETIME NOT NULL,
	result TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_plan_id ON history(plan_id);
CREATE INDEX IF NOT EXISTS idx_history_recorded_at ON history(recorded_at);
`

const migrationV3Cache = `
CREATE TABLE IF NOT EXISTS cache (
	key TEXT PRIMARY KEY,
	output TEXT NOT NULL,
	duration_ns INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	hits INTEGER NOT NULL DEFAULT 0
);
`

// CacheRecord is a persisted step-result cache entry.
type CacheRecord struct {
	Key       string
	Output    map[string]any
	Duration  time.Duration
	CreatedAt time.Time
	Hits      int
}

// SaveProfiles upserts all tracker profiles.
func (s *Store) SaveProfiles(profiles map[string]models.PerformanceProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	for _, p := range profiles {
		if _, err := tx.Exec(`
			INSERT INTO profiles (item, avg_duration_ns, avg_cost, success_rate, samples, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(item) DO UPDATE SET
				avg_duration_ns = excluded.avg_duration_ns,
				avg_cost = excluded.avg_cost,
				success_rate = excluded.success_rate,
				samples = excluded.samples,
				updated_at = excluded.updated_at
		`, p.Item, int64(p.AvgDuration), p.AvgCost, p.SuccessRate, p.Samples, formatTime(time.Now())); err != nil {
			tx.Rollback()
			return fmt.Errorf("save profile %s: %w", p.Item, err)
		}
	}

	return tx.Commit()
}

// LoadProfiles reads all persisted profiles.
func (s *Store) LoadProfiles() (map[string]models.PerformanceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT item, avg_duration_ns, avg_cost, success_rate, samples FROM profiles")
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.PerformanceProfile)
	for rows.Next() {
		var p models.PerformanceProfile
		var durNs int64
		if err := rows.Scan(&p.Item, &durNs, &p.AvgCost, &p.SuccessRate, &p.Samples); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.AvgDuration = time.Duration(durNs)
		out[p.Item] = p
	}
	return out, rows.Err()
}

// AppendRun persists one run record as JSON.
func (s *Store) AppendRun(entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO history (plan_id, recorded_at, result) VALUES (?, ?, ?)
	`, entry.PlanID, formatTime(entry.Timestamp), string(blob))
	if err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	return nil
}

// LoadHistory reads the most recent limit runs, oldest first.
func (s *Store) LoadHistory(limit int) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT plan_id, recorded_at, result FROM history
		ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var recorded, blob string
		if err := rows.Scan(&e.PlanID, &recorded, &blob); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if t, err := parseTime(recorded); err == nil {
			e.Timestamp = t
		}
		if err := json.Unmarshal([]byte(blob), &e.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// PurgeHistory deletes run records older than the given duration.
// Returns the number of rows deleted.
func (s *Store) PurgeHistory(olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := formatTime(time.Now().Add(-olderThan))
	res, err := s.db.Exec("DELETE FROM history WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge history: %w", err)
	}
	return res.RowsAffected()
}

// PurgeAllHistory deletes every run record. Returns the number of rows
// deleted.
func (s *Store) PurgeAllHistory() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM history")
	if err != nil {
		return 0, fmt.Errorf("purge history: %w", err)
	}
	return res.RowsAffected()
}

// PurgeProfiles deletes all persisted profiles. Returns the number of
// rows deleted.
func (s *Store) PurgeProfiles() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM profiles")
	if err != nil {
		return 0, fmt.Errorf("purge profiles: %w", err)
	}
	return res.RowsAffected()
}

// SaveCache upserts the given cache records.
func (s *Store) SaveCache(records []CacheRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	for _, r := range records {
		blob, err := json.Marshal(r.Output)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encode cache output: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO cache (key, output, duration_ns, created_at, hits)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				output = excluded.output,
				duration_ns = excluded.duration_ns,
				created_at = excluded.created_at,
				hits = excluded.hits
		`, r.Key, string(blob), int64(r.Duration), formatTime(r.CreatedAt), r.Hits); err != nil {
			tx.Rollback()
			return fmt.Errorf("save cache entry: %w", err)
		}
	}

	return tx.Commit()
}

// LoadCache reads the most recently created limit cache records,
// oldest first.
func (s *Store) LoadCache(limit int) ([]CacheRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT key, output, duration_ns, created_at, hits FROM cache
		ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	defer rows.Close()

	var records []CacheRecord
	for rows.Next() {
		var r CacheRecord
		var durNs int64
		var created, blob string
		if err := rows.Scan(&r.Key, &blob, &durNs, &created, &r.Hits); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		r.Duration = time.Duration(durNs)
		if t, err := parseTime(created); err == nil {
			r.CreatedAt = t
		}
		if err := json.Unmarshal([]byte(blob), &r.Output); err != nil {
			return nil, fmt.Errorf("decode cache output: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// CacheCount returns the number of persisted cache records and their
// cumulative hit count.
func (s *Store) CacheCount() (entries int, hits int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(hits), 0) FROM cache")
	if err := row.Scan(&entries, &hits); err != nil {
		return 0, 0, fmt.Errorf("count cache: %w", err)
	}
	return entries, hits, nil
}

// PurgeCache deletes all persisted cache records.
func (s *Store) PurgeCache() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM cache")
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

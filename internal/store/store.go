// Package store persists finished focus sessions and cross-session app
// totals in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/vthunder/focuspet/internal/focus"
	"github.com/vthunder/focuspet/internal/logging"
)

// ErrNotFound is returned when a session id is unknown
var ErrNotFound = errors.New("store: session not found")

// Drivers
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

// Store wraps the SQLite database of finished sessions
type Store struct {
	db     *sql.DB
	path   string
	driver string
}

// Open opens or creates the session database at path. An empty driver
// selects DriverCGO.
func Open(path, driver string) (*Store, error) {
	if driver == "" {
		driver = DriverCGO
	}
	var dsn string
	switch driver {
	case DriverCGO:
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	case DriverPureGo:
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	default:
		return nil, fmt.Errorf("unknown sqlite driver %q", driver)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, path: path, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	logging.Debug("store", "opened %s (%s)", path, driver)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location
func (s *Store) Path() string { return s.path }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		start_ms INTEGER NOT NULL,
		end_ms INTEGER NOT NULL,
		looking_ms INTEGER NOT NULL,
		away_ms INTEGER NOT NULL,
		focus_score INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions(start_ms);

	CREATE TABLE IF NOT EXISTS session_usage (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		ms INTEGER NOT NULL,
		PRIMARY KEY (session_id, kind, name)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return err
	}
	if version < 1 {
		if err := s.setVersion(1); err != nil {
			return err
		}
	}
	if version < 2 {
		// cross-session per-app totals
		if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS app_totals (
			name TEXT PRIMARY KEY,
			ms INTEGER NOT NULL
		)`); err != nil {
			return err
		}
		if err := s.setVersion(2); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) setVersion(v int) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)", v, time.Now().UnixMilli())
	return err
}

const (
	usageApp  = "app"
	usageSite = "site"
)

// Save inserts or replaces a session record
func (s *Store) Save(ctx context.Context, r focus.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_usage WHERE session_id = ?`, r.ID); err != nil {
		return fmt.Errorf("clear usage: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (id, user_id, start_ms, end_ms, looking_ms, away_ms, focus_score)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.StartTime.UnixMilli(), r.EndTime.UnixMilli(), r.LookingMs, r.AwayMs, r.FocusScore)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	for kind, usage := range map[string]map[string]int64{usageApp: r.Activity, usageSite: r.Sites} {
		for name, ms := range usage {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO session_usage (session_id, kind, name, ms) VALUES (?, ?, ?, ?)`,
				r.ID, kind, name, ms); err != nil {
				return fmt.Errorf("insert %s usage: %w", kind, err)
			}
		}
	}
	return tx.Commit()
}

// Get loads one session by id
func (s *Store) Get(ctx context.Context, id string) (focus.Record, error) {
	rows, err := s.query(ctx, `WHERE id = ?`, id)
	if err != nil {
		return focus.Record{}, err
	}
	if len(rows) == 0 {
		return focus.Record{}, ErrNotFound
	}
	return rows[0], nil
}

// Recent returns the newest n sessions (all if n <= 0), newest first
func (s *Store) Recent(ctx context.Context, n int) ([]focus.Record, error) {
	if n <= 0 {
		return s.query(ctx, `ORDER BY start_ms DESC`)
	}
	return s.query(ctx, `ORDER BY start_ms DESC LIMIT ?`, n)
}

// Since returns sessions that started at or after t, oldest first
func (s *Store) Since(ctx context.Context, t time.Time) ([]focus.Record, error) {
	return s.query(ctx, `WHERE start_ms >= ? ORDER BY start_ms ASC`, t.UnixMilli())
}

// Delete removes a session and its usage rows
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_usage WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete usage: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// Stats summarizes every stored session as of now
func (s *Store) Stats(ctx context.Context, now time.Time) (focus.Summary, error) {
	all, err := s.Recent(ctx, 0)
	if err != nil {
		return focus.Summary{}, err
	}
	return focus.Summarize(all, now), nil
}

func (s *Store) query(ctx context.Context, clause string, args ...any) ([]focus.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, start_ms, end_ms, looking_ms, away_ms, focus_score
		FROM sessions `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []focus.Record
	for rows.Next() {
		var r focus.Record
		var startMs, endMs int64
		if err := rows.Scan(&r.ID, &r.UserID, &startMs, &endMs, &r.LookingMs, &r.AwayMs, &r.FocusScore); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		r.StartTime = time.UnixMilli(startMs)
		r.EndTime = time.UnixMilli(endMs)
		r.Activity = make(map[string]int64)
		r.Sites = make(map[string]int64)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		if err := s.loadUsage(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadUsage(ctx context.Context, r *focus.Record) error {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, name, ms FROM session_usage WHERE session_id = ?`, r.ID)
	if err != nil {
		return fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, name string
		var ms int64
		if err := rows.Scan(&kind, &name, &ms); err != nil {
			return fmt.Errorf("scan usage: %w", err)
		}
		switch kind {
		case usageApp:
			r.Activity[name] = ms
		case usageSite:
			r.Sites[name] = ms
		}
	}
	return rows.Err()
}

// MergeAppTotals adds one session's per-app times to the running totals
// and returns the updated totals.
func (s *Store) MergeAppTotals(ctx context.Context, session map[string]int64) (map[string]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	for name, ms := range session {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO app_totals (name, ms) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET ms = ms + excluded.ms`, name, ms); err != nil {
			return nil, fmt.Errorf("merge %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.AppTotals(ctx)
}

// AppTotals returns cross-session per-app totals in ms
func (s *Store) AppTotals(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, ms FROM app_totals`)
	if err != nil {
		return nil, fmt.Errorf("query app totals: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var ms int64
		if err := rows.Scan(&name, &ms); err != nil {
			return nil, err
		}
		out[name] = ms
	}
	return out, rows.Err()
}

// HandleSession saves a finished session and folds its app times into the
// totals, so a Store can be registered directly as a session sink.
func (s *Store) HandleSession(ctx context.Context, r focus.Record) error {
	if err := s.Save(ctx, r); err != nil {
		return fmt.Errorf("save session %s: %w", r.ID, err)
	}
	if _, err := s.MergeAppTotals(ctx, r.Activity); err != nil {
		return fmt.Errorf("merge app totals: %w", err)
	}
	logging.Debug("store", "saved session %s", r.ID)
	return nil
}

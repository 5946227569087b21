package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// timeLayout is the canonical on-disk timestamp format. Storing UTC text in
// this form keeps SQLite's date functions and lexicographic ordering usable
// for the retention query, independent of driver time binding.
const timeLayout = "2006-01-02 15:04:05"

// paramsPerRow is the number of bound parameters one sample contributes to
// a batch insert. Together with the batch limit it bounds the statement's
// total parameter count below the backend ceiling.
const paramsPerRow = 3

type SQLite struct {
	db       *sql.DB
	log      *zap.Logger
	maxBatch int
	now      func() time.Time // injected for tests
}

// NewSQLite opens (or creates) the SQLite file at dbPath. The caller must
// call Close() when the program shuts down and Prepare() before first use.
func NewSQLite(dbPath string, maxBatch int, log *zap.Logger) (*SQLite, error) {
	// The modernc.org driver is pure-go and works without CGO.
	dsn := fmt.Sprintf("file:%s?_fk=1", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// Verify the connection quickly.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	return &SQLite{db: db, log: log, maxBatch: maxBatch, now: time.Now}, nil
}

// Prepare creates the population table and its index if they do not exist.
// Safe to call on an already-initialized store.
func (s *SQLite) Prepare(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS population (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    servers INTEGER NOT NULL,
    players INTEGER NOT NULL,
    date    TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_population_date ON population(date);
`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return &StoreError{Op: "prepare", Err: err}
	}
	s.log.Debug("population table ready")
	return nil
}

// InsertOne persists one sample with the store-assigned current time.
func (s *SQLite) InsertOne(ctx context.Context, servers, players int) error {
	ts := s.now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO population (servers, players, date) VALUES (?, ?, ?)`,
		servers, players, ts)
	if err != nil {
		return &StoreError{Op: "insert", Err: err}
	}
	s.log.Debug("sample persisted", zap.Int("servers", servers), zap.Int("players", players), zap.String("date", ts))
	return nil
}

// InsertBatch persists samples in a single multi-row statement with their
// explicit timestamps. The whole batch succeeds or fails as one unit; a
// batch larger than the configured limit is rejected before anything is
// sent, so the statement never exceeds the parameter ceiling.
func (s *SQLite) InsertBatch(ctx context.Context, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	if len(samples) > s.maxBatch {
		return &StoreError{Op: "insert batch", Err: fmt.Errorf("batch of %d rows exceeds limit of %d", len(samples), s.maxBatch)}
	}

	var b strings.Builder
	b.WriteString("INSERT INTO population (servers, players, date) VALUES ")

	args := make([]any, 0, len(samples)*paramsPerRow)
	for i, smp := range samples {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?,?,?)")
		args = append(args, smp.Servers, smp.Players, smp.Timestamp.UTC().Format(timeLayout))
	}

	if _, err := s.db.ExecContext(ctx, b.String(), args...); err != nil {
		return &StoreError{Op: "insert batch", Err: err}
	}
	s.log.Debug("batch persisted", zap.Int("rows", len(samples)))
	return nil
}

// Query implements the retention policy: rows inside the trailing window
// (boundary inclusive) come back at full resolution, older rows collapse
// to one mean per calendar day stamped with the day's earliest timestamp.
// The combined result is sorted ascending by timestamp.
func (s *SQLite) Query(ctx context.Context, retentionDays int) ([]Row, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays).Format(timeLayout)

	const q = `
SELECT CAST(servers AS REAL) AS servers, CAST(players AS REAL) AS players, date AS ts
FROM population
WHERE date >= ?
UNION ALL
SELECT AVG(servers), AVG(players), MIN(date) AS ts
FROM population
WHERE date < ?
GROUP BY date(date)
ORDER BY ts ASC`

	rows, err := s.db.QueryContext(ctx, q, cutoff, cutoff)
	if err != nil {
		return nil, &StoreError{Op: "query", Err: err}
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var ts string
		if err := rows.Scan(&r.Servers, &r.Players, &ts); err != nil {
			return nil, &StoreError{Op: "query scan", Err: err}
		}
		t, err := time.Parse(timeLayout, ts)
		if err != nil {
			return nil, &StoreError{Op: "query scan", Err: fmt.Errorf("bad timestamp %q: %w", ts, err)}
		}
		r.Timestamp = t
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "query", Err: err}
	}
	return out, nil
}

// ClearAll deletes every sample. There is no selective delete.
func (s *SQLite) ClearAll(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM population`)
	if err != nil {
		return &StoreError{Op: "clear", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil {
		s.log.Info("population table cleared", zap.Int64("rows", n))
	}
	return nil
}

// Count returns the number of persisted samples.
func (s *SQLite) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM population`).Scan(&n); err != nil {
		return 0, &StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// Close shuts down the database connection.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ Store = (*SQLite)(nil)

// Package store keeps a SQLite log of load cycles and per-source fetch
// outcomes. Aggregated mentions are never written here.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the fetch log. Safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// FetchRecord is the outcome of fetching one source during a load.
type FetchRecord struct {
	Source     string
	Location   string
	Tier       string
	OK         bool
	Bytes      int
	HTTPStatus int
	Shape      string
	Err        string
	Dur        time.Duration
}

// LoadRecord summarizes one load cycle.
type LoadRecord struct {
	ID         int64
	SessionID  string
	LoadID     uint64
	Started    time.Time
	Finished   time.Time
	Status     string // "ready", "error", "cancelled"
	Kind       string
	Mentions   int
	Dropped    int
	Mismatches int
	Err        string
	Fetches    []FetchRecord
}

// SourceStat aggregates fetch history for one source.
type SourceStat struct {
	Source   string
	Attempts int
	Failures int
	LastOK   time.Time // zero if never fetched successfully
	AvgDur   time.Duration
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS loads (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT NOT NULL DEFAULT '',
		load_id     INTEGER NOT NULL DEFAULT 0,
		started_ms  INTEGER NOT NULL,
		finished_ms INTEGER NOT NULL,
		status      TEXT NOT NULL,
		kind        TEXT NOT NULL DEFAULT '',
		mentions    INTEGER NOT NULL DEFAULT 0,
		dropped     INTEGER NOT NULL DEFAULT 0,
		mismatches  INTEGER NOT NULL DEFAULT 0,
		err         TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS fetches (
		load_row    INTEGER NOT NULL REFERENCES loads(id) ON DELETE CASCADE,
		seq         INTEGER NOT NULL,
		source      TEXT NOT NULL,
		location    TEXT NOT NULL DEFAULT '',
		tier        TEXT NOT NULL DEFAULT '',
		ok          INTEGER NOT NULL,
		bytes       INTEGER NOT NULL DEFAULT 0,
		http_status INTEGER NOT NULL DEFAULT 0,
		shape       TEXT NOT NULL DEFAULT '',
		err         TEXT NOT NULL DEFAULT '',
		dur_ms      REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (load_row, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_fetches_source ON fetches(source);
	`
	_, err := s.db.Exec(ddl)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// RecordLoad writes a load and its fetches in one transaction and returns
// the new row ID.
func (s *Store) RecordLoad(rec LoadRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO loads (session_id, load_id, started_ms, finished_ms, status, kind, mentions, dropped, mismatches, err)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, int64(rec.LoadID), rec.Started.UnixMilli(), rec.Finished.UnixMilli(),
		rec.Status, rec.Kind, rec.Mentions, rec.Dropped, rec.Mismatches, rec.Err,
	)
	if err != nil {
		return 0, fmt.Errorf("insert load: %w", err)
	}
	row, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, f := range rec.Fetches {
		_, err := tx.Exec(`
			INSERT INTO fetches (load_row, seq, source, location, tier, ok, bytes, http_status, shape, err, dur_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row, i, f.Source, f.Location, f.Tier, boolToInt(f.OK), f.Bytes, f.HTTPStatus,
			f.Shape, f.Err, float64(f.Dur)/float64(time.Millisecond),
		)
		if err != nil {
			return 0, fmt.Errorf("insert fetch %s: %w", f.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return row, nil
}

// RecentLoads returns up to limit loads, newest first, with their fetches.
func (s *Store) RecentLoads(limit int) ([]LoadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, session_id, load_id, started_ms, finished_ms, status, kind, mentions, dropped, mismatches, err
		FROM loads ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	var loads []LoadRecord
	for rows.Next() {
		var (
			l                 LoadRecord
			loadID            int64
			startedMs, doneMs int64
		)
		if err := rows.Scan(&l.ID, &l.SessionID, &loadID, &startedMs, &doneMs, &l.Status, &l.Kind,
			&l.Mentions, &l.Dropped, &l.Mismatches, &l.Err); err != nil {
			rows.Close()
			return nil, err
		}
		l.LoadID = uint64(loadID)
		l.Started = time.UnixMilli(startedMs)
		l.Finished = time.UnixMilli(doneMs)
		loads = append(loads, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range loads {
		fetches, err := s.fetchesFor(loads[i].ID)
		if err != nil {
			return nil, err
		}
		loads[i].Fetches = fetches
	}
	return loads, nil
}

func (s *Store) fetchesFor(row int64) ([]FetchRecord, error) {
	rows, err := s.db.Query(`
		SELECT source, location, tier, ok, bytes, http_status, shape, err, dur_ms
		FROM fetches WHERE load_row = ? ORDER BY seq`, row)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FetchRecord
	for rows.Next() {
		var (
			f     FetchRecord
			ok    int
			durMs float64
		)
		if err := rows.Scan(&f.Source, &f.Location, &f.Tier, &ok, &f.Bytes, &f.HTTPStatus, &f.Shape, &f.Err, &durMs); err != nil {
			return nil, err
		}
		f.OK = ok != 0
		f.Dur = time.Duration(durMs * float64(time.Millisecond))
		out = append(out, f)
	}
	return out, rows.Err()
}

// SourceStats aggregates the whole fetch history per source, ordered by
// source name.
func (s *Store) SourceStats() ([]SourceStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT f.source,
			COUNT(*),
			SUM(CASE WHEN f.ok = 0 THEN 1 ELSE 0 END),
			COALESCE(MAX(CASE WHEN f.ok = 1 THEN l.finished_ms END), 0),
			AVG(f.dur_ms)
		FROM fetches f JOIN loads l ON l.id = f.load_row
		GROUP BY f.source
		ORDER BY f.source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceStat
	for rows.Next() {
		var (
			st     SourceStat
			lastOK int64
			avgMs  float64
		)
		if err := rows.Scan(&st.Source, &st.Attempts, &st.Failures, &lastOK, &avgMs); err != nil {
			return nil, err
		}
		if lastOK > 0 {
			st.LastOK = time.UnixMilli(lastOK)
		}
		st.AvgDur = time.Duration(avgMs * float64(time.Millisecond))
		out = append(out, st)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep loads and their fetches. It returns
// the number of loads removed.
func (s *Store) Prune(keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const older = `SELECT id FROM loads ORDER BY id DESC LIMIT -1 OFFSET ?`
	if _, err := tx.Exec(`DELETE FROM fetches WHERE load_row IN (`+older+`)`, keep); err != nil {
		return 0, fmt.Errorf("prune fetches: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM loads WHERE id IN (`+older+`)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune loads: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

// LoadCount returns the number of recorded loads.
func (s *Store) LoadCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM loads`).Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

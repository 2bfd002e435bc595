// Package journal keeps a SQLite record of emitted strokes.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"halfkbd/internal/chord"
)

// Entry is one journaled stroke.
type Entry struct {
	ID        int64
	SessionID int64
	Time      time.Time
	Kind      string
	Symbols   []string
	Sources   []string
}

// Session is one capture run.
type Session struct {
	ID      int64
	Started time.Time
	Ended   time.Time
	Keymap  string
	Strokes int
}

// Journal is the stroke store.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path and brings its schema up to
// date.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// SchemaVersion returns the applied schema version.
func (j *Journal) SchemaVersion() (int, error) {
	return schemaVersion(j.db)
}

// BeginSession records the start of a capture run.
func (j *Journal) BeginSession(started time.Time, keymap string) (int64, error) {
	res, err := j.db.Exec(
		"INSERT INTO sessions (started_ns, keymap) VALUES (?, ?)",
		started.UnixNano(), keymap,
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return res.LastInsertId()
}

// EndSession records the end of a capture run.
func (j *Journal) EndSession(id int64, ended time.Time) error {
	res, err := j.db.Exec("UPDATE sessions SET ended_ns = ? WHERE id = ?", ended.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end session %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// Append records a stroke. A sessionID of 0 records it outside any session.
func (j *Journal) Append(sessionID int64, s chord.Stroke) (int64, error) {
	symbols, err := json.Marshal(nonNil(s.Keys))
	if err != nil {
		return 0, fmt.Errorf("encode symbols: %w", err)
	}
	sources, err := json.Marshal(nonNil(s.Sources))
	if err != nil {
		return 0, fmt.Errorf("encode sources: %w", err)
	}

	var session any
	if sessionID != 0 {
		session = sessionID
	}

	res, err := j.db.Exec(`
		INSERT INTO strokes (timestamp_ns, kind, symbols, sources, session_id)
		VALUES (?, ?, ?, ?, ?)`,
		s.Time.UnixNano(), s.Kind.String(), string(symbols), string(sources), session,
	)
	if err != nil {
		return 0, fmt.Errorf("insert stroke: %w", err)
	}
	return res.LastInsertId()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Recent returns up to limit of the newest strokes, oldest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	rows, err := j.db.Query(`
		SELECT id, COALESCE(session_id, 0), timestamp_ns, kind, symbols, sources
		FROM (SELECT * FROM strokes ORDER BY id DESC LIMIT ?)
		ORDER BY id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("query strokes: %w", err)
	}
	return scanEntries(rows)
}

// SessionStrokes returns the strokes of one session in order.
func (j *Journal) SessionStrokes(sessionID int64) ([]Entry, error) {
	rows, err := j.db.Query(`
		SELECT id, COALESCE(session_id, 0), timestamp_ns, kind, symbols, sources
		FROM strokes WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session strokes: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                Entry
			ts               int64
			symbols, sources string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &ts, &e.Kind, &symbols, &sources); err != nil {
			return nil, fmt.Errorf("scan stroke: %w", err)
		}
		e.Time = time.Unix(0, ts)
		if err := json.Unmarshal([]byte(symbols), &e.Symbols); err != nil {
			return nil, fmt.Errorf("decode symbols of stroke %d: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
			return nil, fmt.Errorf("decode sources of stroke %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Sessions returns up to limit of the newest sessions, newest first, with
// their stroke counts.
func (j *Journal) Sessions(limit int) ([]Session, error) {
	rows, err := j.db.Query(`
		SELECT s.id, s.started_ns, COALESCE(s.ended_ns, 0), COALESCE(s.keymap, ''),
		       (SELECT COUNT(*) FROM strokes WHERE session_id = s.id)
		FROM sessions s ORDER BY s.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			s              Session
			started, ended int64
		)
		if err := rows.Scan(&s.ID, &started, &ended, &s.Keymap, &s.Strokes); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Started = time.Unix(0, started)
		if ended != 0 {
			s.Ended = time.Unix(0, ended)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Counts returns the number of journaled strokes by kind.
func (j *Journal) Counts() (map[string]int, error) {
	rows, err := j.db.Query("SELECT kind, COUNT(*) FROM strokes GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("count strokes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// Prune deletes strokes older than before and returns how many went.
func (j *Journal) Prune(before time.Time) (int64, error) {
	res, err := j.db.Exec("DELETE FROM strokes WHERE timestamp_ns < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune strokes: %w", err)
	}
	return res.RowsAffected()
}

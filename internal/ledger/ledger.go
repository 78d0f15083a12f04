// Package ledger keeps a SQLite history of generation runs and the items
// they produced, so repeats can be found across runs.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"artgen/internal/metadata"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	started_at   TEXT NOT NULL,
	finished_at  TEXT,
	seed         INTEGER NOT NULL,
	amount       INTEGER NOT NULL,
	format       TEXT NOT NULL,
	output_dir   TEXT NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT
);

CREATE TABLE IF NOT EXISTS items (
	run_id          TEXT NOT NULL,
	idx             INTEGER NOT NULL,
	name            TEXT NOT NULL,
	fingerprint     TEXT NOT NULL,
	attributes_json TEXT NOT NULL,
	PRIMARY KEY (run_id, idx),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS items_fingerprint ON items(fingerprint);
`

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one recorded batch.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Seed       int64
	Amount     int
	Format     string
	OutputDir  string
	Status     string
	Error      string
	// Items is only filled by Record input; queries leave it empty.
	Items []metadata.Record
}

// Item is one recorded item, returned by fingerprint lookups.
type Item struct {
	RunID       string
	Index       int
	Name        string
	Fingerprint string
	Attributes  []metadata.Attribute
}

// Store manages the ledger database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Fingerprint identifies an attribute list; equal lists, in the same order,
// share a fingerprint. Fields are quoted, so separators inside names never
// make two different lists collide.
func Fingerprint(attrs []metadata.Attribute) string {
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = strconv.Quote(a.TraitType) + "=" + strconv.Quote(a.Value)
	}
	return strings.Join(parts, "|")
}

// Record stores run and its items in one transaction. An empty run.ID gets
// a fresh UUID; the stored id is returned.
func (s *Store) Record(run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = StatusOK
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var finished any
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err = tx.Exec(
		`INSERT INTO runs (run_id, started_at, finished_at, seed, amount, format, output_dir, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), finished,
		run.Seed, run.Amount, run.Format, run.OutputDir, run.Status, nullString(run.Error),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO items (run_id, idx, name, fingerprint, attributes_json) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare items: %w", err)
	}
	defer stmt.Close()
	for _, rec := range run.Items {
		attrs, err := json.Marshal(rec.Attributes)
		if err != nil {
			return "", fmt.Errorf("marshal attributes %d: %w", rec.Index, err)
		}
		if _, err := stmt.Exec(run.ID, rec.Index, rec.Name, Fingerprint(rec.Attributes), string(attrs)); err != nil {
			return "", fmt.Errorf("insert item %d: %w", rec.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	q := `SELECT run_id, started_at, finished_at, seed, amount, format, output_dir, status, error
	      FROM runs ORDER BY started_at DESC, run_id`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started           string
			finished, errText sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Seed, &r.Amount, &r.Format, &r.OutputDir, &r.Status, &errText); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if finished.Valid {
			if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished.String); err != nil {
				return nil, fmt.Errorf("parse finished_at: %w", err)
			}
		}
		r.Error = errText.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CountItems returns how many items a run recorded.
func (s *Store) CountItems(runID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM items WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// ItemsByFingerprint returns every recorded item with the given attribute
// fingerprint, oldest run first.
func (s *Store) ItemsByFingerprint(fp string) ([]Item, error) {
	rows, err := s.db.Query(
		`SELECT i.run_id, i.idx, i.name, i.fingerprint, i.attributes_json
		 FROM items i JOIN runs r ON r.run_id = i.run_id
		 WHERE i.fingerprint = ?
		 ORDER BY r.started_at, i.idx`, fp)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it    Item
			attrs string
		)
		if err := rows.Scan(&it.RunID, &it.Index, &it.Name, &it.Fingerprint, &attrs); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &it.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// SeenBefore returns, for each record, the items of other runs that share
// its attribute list. Records with no earlier match are left out.
func (s *Store) SeenBefore(runID string, recs []metadata.Record) (map[int][]Item, error) {
	out := make(map[int][]Item)
	for _, rec := range recs {
		items, err := s.ItemsByFingerprint(Fingerprint(rec.Attributes))
		if err != nil {
			return nil, err
		}
		var others []Item
		for _, it := range items {
			if it.RunID != runID {
				others = append(others, it)
			}
		}
		if len(others) > 0 {
			out[rec.Index] = others
		}
	}
	return out, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Package catalog records generated instances in an SQLite database so a
// dataset can be queried by coefficient or displacement after the fact.
package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the catalog database name inside an output directory.
const FileName = "catalog.db"

// DB is an open catalog.
type DB struct {
	*sql.DB
}

// Run describes one batch.
type Run struct {
	ID         string
	Seed       uint64
	Components int
	Bound      string
	Count      int
	Created    time.Time
}

// Entry is one written instance.
type Entry struct {
	RunID           string
	Index           int
	File            string
	Coefficients    []float64
	DisplacementRMS float64
}

// Open opens or creates the catalog at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			seed TEXT NOT NULL,
			components INTEGER NOT NULL,
			bound TEXT NOT NULL,
			count INTEGER NOT NULL,
			created TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS instances (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			file TEXT NOT NULL,
			coefficients TEXT NOT NULL,
			displacement_rms DOUBLE NOT NULL,
			PRIMARY KEY (run_id, idx),
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}

	return &DB{db}, nil
}

// RecordRun inserts the run row. Seeds are stored as text since SQLite
// integers are signed.
func (db *DB) RecordRun(r Run) error {
	created := r.Created
	if created.IsZero() {
		created = time.Now()
	}
	_, err := db.Exec("INSERT INTO runs (run_id, seed, components, bound, count, created) VALUES (?, ?, ?, ?, ?, ?)",
		r.ID, fmt.Sprint(r.Seed), r.Components, r.Bound, r.Count, created.UTC())
	return err
}

// RecordInstance inserts one instance row.
func (db *DB) RecordInstance(e Entry) error {
	coeffs, err := json.Marshal(e.Coefficients)
	if err != nil {
		return err
	}
	_, err = db.Exec("INSERT INTO instances (run_id, idx, file, coefficients, displacement_rms) VALUES (?, ?, ?, ?, ?)",
		e.RunID, e.Index, e.File, string(coeffs), e.DisplacementRMS)
	return err
}

// Instances returns the instances of a run in index order.
func (db *DB) Instances(runID string) ([]Entry, error) {
	rows, err := db.Query("SELECT idx, file, coefficients, displacement_rms FROM instances WHERE run_id = ? ORDER BY idx", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e := Entry{RunID: runID}
		var coeffs string
		if err := rows.Scan(&e.Index, &e.File, &coeffs, &e.DisplacementRMS); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(coeffs), &e.Coefficients); err != nil {
			return nil, fmt.Errorf("instance %d: %w", e.Index, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Package store persists per-run planning artifacts and observed node
// states in a sqlite ledger. The ledger is an audit trail and restart
// aid: authoritative node state is always re-derived from the batch
// engine's own report, the ledger records what was observed and which
// gaps were found (and acknowledged) along the way.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/alecgunny/pyomicron/internal/dag"
	"github.com/alecgunny/pyomicron/internal/model"
)

// Ledger wraps the sqlite database.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			start INTEGER NOT NULL,
			end INTEGER NOT NULL,
			flag_expr TEXT NOT NULL,
			dag_path TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS node_states (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			node TEXT NOT NULL,
			state TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			attempt INTEGER NOT NULL,
			observed_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS gaps (
			run_id TEXT NOT NULL,
			start INTEGER NOT NULL,
			end INTEGER NOT NULL,
			source TEXT NOT NULL,
			acknowledged INTEGER NOT NULL DEFAULT 0,
			recorded_at DATETIME NOT NULL,
			PRIMARY KEY (run_id, start, end)
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initialize ledger schema: %w", err)
		}
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// CreateRun records a new planning run and returns its identifier.
func (l *Ledger) CreateRun(rng model.Range, flagExpr, dagPath string) (string, error) {
	id := uuid.NewString()
	_, err := l.db.Exec(
		`INSERT INTO runs (id, start, end, flag_expr, dag_path, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, rng.Start, rng.End, flagExpr, dagPath, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return id, nil
}

// LatestRun returns the most recently created run, or sql.ErrNoRows.
func (l *Ledger) LatestRun() (id string, rng model.Range, dagPath string, err error) {
	row := l.db.QueryRow(`SELECT id, start, end, dag_path FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`)
	if err := row.Scan(&id, &rng.Start, &rng.End, &dagPath); err != nil {
		return "", model.Range{}, "", err
	}
	return id, rng, dagPath, nil
}

// RecordState appends an observed node state transition.
func (l *Ledger) RecordState(runID, node string, state dag.State, exitCode, attempt int) error {
	_, err := l.db.Exec(
		`INSERT INTO node_states (run_id, node, state, exit_code, attempt, observed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, node, state.String(), exitCode, attempt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record node state: %w", err)
	}
	return nil
}

// LastStates returns the most recently observed state per node for a
// run.
func (l *Ledger) LastStates(runID string) (map[string]dag.State, error) {
	rows, err := l.db.Query(
		`SELECT node, state FROM node_states WHERE run_id = ? ORDER BY id ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("load node states: %w", err)
	}
	defer rows.Close()

	out := make(map[string]dag.State)
	for rows.Next() {
		var node, stateName string
		if err := rows.Scan(&node, &stateName); err != nil {
			return nil, fmt.Errorf("scan node state: %w", err)
		}
		state, err := dag.ParseState(stateName)
		if err != nil {
			return nil, err
		}
		out[node] = state
	}
	return out, rows.Err()
}

// RecordGap stores an interval for which the algorithm reported no
// usable data, feeding the next planning pass. Re-recording the same
// gap is a no-op.
func (l *Ledger) RecordGap(runID string, gap model.Range, source string) error {
	_, err := l.db.Exec(
		`INSERT OR IGNORE INTO gaps (run_id, start, end, source, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		runID, gap.Start, gap.End, source, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record gap: %w", err)
	}
	return nil
}

// HasGap reports whether the gap is already recorded for the run.
func (l *Ledger) HasGap(runID string, gap model.Range) (bool, error) {
	var n int
	err := l.db.QueryRow(
		`SELECT COUNT(*) FROM gaps WHERE run_id = ? AND start = ? AND end = ?`,
		runID, gap.Start, gap.End,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check gap: %w", err)
	}
	return n > 0, nil
}

// Gaps lists recorded gaps for a run, optionally including ones the
// operator has acknowledged.
func (l *Ledger) Gaps(runID string, includeAcknowledged bool) ([]model.Range, error) {
	query := `SELECT start, end FROM gaps WHERE run_id = ?`
	if !includeAcknowledged {
		query += ` AND acknowledged = 0`
	}
	rows, err := l.db.Query(query+` ORDER BY start ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("load gaps: %w", err)
	}
	defer rows.Close()

	var out []model.Range
	for rows.Next() {
		var r model.Range
		if err := rows.Scan(&r.Start, &r.End); err != nil {
			return nil, fmt.Errorf("scan gap: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AcknowledgeGap marks a recorded gap as known, removing it from the
// actionable set reported by status.
func (l *Ledger) AcknowledgeGap(runID string, gap model.Range) error {
	res, err := l.db.Exec(
		`UPDATE gaps SET acknowledged = 1 WHERE run_id = ? AND start = ? AND end = ?`,
		runID, gap.Start, gap.End,
	)
	if err != nil {
		return fmt.Errorf("acknowledge gap: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("acknowledge gap: no recorded gap %s", gap)
	}
	return nil
}

// Package runs persists optimization run history.
package runs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/modules/optimization"
)

const schema = `
CREATE TABLE IF NOT EXISTS optimization_runs (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	assets TEXT NOT NULL,
	options TEXT NOT NULL,
	report TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_optimization_runs_created_at ON optimization_runs(created_at);
`

// Run is one persisted optimization run.
type Run struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"created_at"`
	Assets    []string             `json:"assets"`
	Options   optimization.Options `json:"options"`
	Report    *optimization.Report `json:"report"`
}

// Repository handles optimization run database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new run repository and ensures its schema exists.
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create runs schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "runs").Logger(),
	}, nil
}

// Save stores a completed run and returns it with its assigned ID.
func (r *Repository) Save(assets []string, options optimization.Options, report *optimization.Report) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Assets:    assets,
		Options:   options,
		Report:    report,
	}

	assetsJSON, err := json.Marshal(run.Assets)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal assets: %w", err)
	}
	optionsJSON, err := json.Marshal(run.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal options: %w", err)
	}
	reportJSON, err := json.Marshal(run.Report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO optimization_runs (id, created_at, assets, options, report) VALUES (?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.Format(time.RFC3339Nano),
		string(assetsJSON),
		string(optionsJSON),
		string(reportJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	r.log.Debug().Str("run_id", run.ID).Msg("saved optimization run")
	return run, nil
}

// GetByID returns one run, or nil when it does not exist.
func (r *Repository) GetByID(id string) (*Run, error) {
	row := r.db.QueryRow(
		`SELECT id, created_at, assets, options, report FROM optimization_runs WHERE id = ?`,
		id,
	)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (r *Repository) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, created_at, assets, options, report FROM optimization_runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var result []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var createdAt, assetsJSON, optionsJSON, reportJSON string

	if err := row.Scan(&run.ID, &createdAt, &assetsJSON, &optionsJSON, &reportJSON); err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	run.CreatedAt = ts

	if err := json.Unmarshal([]byte(assetsJSON), &run.Assets); err != nil {
		return nil, fmt.Errorf("invalid assets payload: %w", err)
	}
	if err := json.Unmarshal([]byte(optionsJSON), &run.Options); err != nil {
		return nil, fmt.Errorf("invalid options payload: %w", err)
	}
	if err := json.Unmarshal([]byte(reportJSON), &run.Report); err != nil {
		return nil, fmt.Errorf("invalid report payload: %w", err)
	}
	return &run, nil
}

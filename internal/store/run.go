package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Run is one streaming session, from camera start to stop.
type Run struct {
	ID        string
	StartedAt time.Time
	StoppedAt *time.Time
}

// Active reports whether the run has not been stopped.
func (r *Run) Active() bool {
	return r.StoppedAt == nil
}

// RunRepository provides operations on runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Start inserts a new run with a fresh ID.
func (r *RunRepository) Start(at time.Time) (*Run, error) {
	run := &Run{ID: uuid.New().String(), StartedAt: at}

	_, err := r.db.Exec(
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		run.ID, run.StartedAt,
	)
	if err != nil {
		return nil, err
	}

	return run, nil
}

// Stop marks a run as stopped.
func (r *RunRepository) Stop(id string, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE runs SET stopped_at = ? WHERE id = ? AND stopped_at IS NULL`,
		at, id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	run := &Run{}
	var stopped sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, started_at, stopped_at FROM runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.StartedAt, &stopped)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if stopped.Valid {
		run.StoppedAt = &stopped.Time
	}
	return run, nil
}

// List retrieves the most recent runs, newest first. A non-positive limit
// returns every run.
func (r *RunRepository) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, started_at, stopped_at FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var stopped sql.NullTime

		if err := rows.Scan(&run.ID, &run.StartedAt, &stopped); err != nil {
			return nil, err
		}

		if stopped.Valid {
			run.StoppedAt = &stopped.Time
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// CloseDangling stops every run left active, for example by a crash.
// It returns the number of runs closed.
func (r *RunRepository) CloseDangling(at time.Time) (int64, error) {
	result, err := r.db.Exec(`UPDATE runs SET stopped_at = ? WHERE stopped_at IS NULL`, at)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

package store

import (
	"database/sql"
	"time"
)

// Event is one recorded state transition.
type Event struct {
	ID      int64
	RunID   string
	Kind    string
	Message string
	At      time.Time
}

// EventRepository provides operations on events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Add inserts an event. An empty RunID records the event outside any run.
func (r *EventRepository) Add(e *Event) error {
	var runID any
	if e.RunID != "" {
		runID = e.RunID
	}

	result, err := r.db.Exec(
		`INSERT INTO events (run_id, kind, message, at) VALUES (?, ?, ?, ?)`,
		runID, e.Kind, e.Message, e.At,
	)
	if err != nil {
		return err
	}

	e.ID, err = result.LastInsertId()
	return err
}

// ListByRun retrieves the events of one run in the order they happened.
func (r *EventRepository) ListByRun(runID string) ([]*Event, error) {
	return r.query(
		`SELECT id, COALESCE(run_id, ''), kind, message, at
		 FROM events WHERE run_id = ? ORDER BY id`,
		runID,
	)
}

// Recent retrieves the newest events across all runs, newest first.
func (r *EventRepository) Recent(limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.query(
		`SELECT id, COALESCE(run_id, ''), kind, message, at
		 FROM events ORDER BY id DESC LIMIT ?`,
		limit,
	)
}

func (r *EventRepository) query(q string, args ...any) ([]*Event, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.RunID, &e.Kind, &e.Message, &e.At); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

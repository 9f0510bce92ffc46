package store

import (
	"fmt"
	"sync"
	"time"
)

// Kind of event that opens a run. Leaving it closes the run.
const streamingKind = "streaming"

// Journal records session state transitions, grouping everything between
// entering and leaving the streaming state into one run.
type Journal struct {
	store *Store

	mu  sync.Mutex
	run string
}

// NewJournal creates a Journal backed by s.
func NewJournal(s *Store) *Journal {
	return &Journal{store: s}
}

// Record stores one transition.
func (j *Journal) Record(state, message string, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if state == streamingKind && j.run == "" {
		run, err := j.store.Runs().Start(at)
		if err != nil {
			return fmt.Errorf("start run: %w", err)
		}
		j.run = run.ID
	}

	if err := j.store.Events().Add(&Event{RunID: j.run, Kind: state, Message: message, At: at}); err != nil {
		return fmt.Errorf("add event: %w", err)
	}

	if state != streamingKind && j.run != "" {
		if err := j.store.Runs().Stop(j.run, at); err != nil {
			return fmt.Errorf("stop run: %w", err)
		}
		j.run = ""
	}

	return nil
}

// CurrentRun returns the ID of the open run, or "".
func (j *Journal) CurrentRun() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.run
}

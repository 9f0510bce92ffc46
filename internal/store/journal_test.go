package store

import (
	"testing"
	"time"
)

func TestJournal_GroupsStreamingIntoRuns(t *testing.T) {
	s := newTestStore(t)
	j := NewJournal(s)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	steps := []struct {
		state, message string
	}{
		{"initialized", ""},
		{"error", "Camera access was denied."},
		{"streaming", ""},
		{"initialized", ""},
	}

	for i, step := range steps {
		if err := j.Record(step.state, step.message, at.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Record(%s) error = %v", step.state, err)
		}
		if step.state == "streaming" && j.CurrentRun() == "" {
			t.Fatal("entering streaming should open a run")
		}
	}

	if j.CurrentRun() != "" {
		t.Error("leaving streaming should close the run")
	}

	runs, err := s.Runs().List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Active() {
		t.Error("run should be stopped")
	}

	events, err := s.Events().ListByRun(runs[0].ID)
	if err != nil {
		t.Fatalf("ListByRun() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events in run, got %d", len(events))
	}
	if events[0].Kind != "streaming" || events[1].Kind != "initialized" {
		t.Errorf("unexpected kinds %q, %q", events[0].Kind, events[1].Kind)
	}

	recent, err := s.Events().Recent(0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != len(steps) {
		t.Fatalf("expected %d events, got %d", len(steps), len(recent))
	}
	if recent[len(recent)-2].Message != "Camera access was denied." {
		t.Errorf("error message not kept: %q", recent[len(recent)-2].Message)
	}
	if recent[len(recent)-1].RunID != "" {
		t.Error("events before the first run have no run id")
	}
}

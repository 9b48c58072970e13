// Package store is the authoritative record of every task. It is the only
// component allowed to mutate task state: the three scheduling tiers
// request transitions here instead of holding private copies that can
// drift. All mutation is serialized under one mutex, so per-task writes
// never race.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tempohq/tempo/internal/domain"
)

// Journal receives a write-through copy of every committed task mutation.
// The SQLite layer implements it; a nil journal keeps the store purely
// in-memory (tests).
type Journal interface {
	SaveTask(task domain.Task) error
}

// Store owns all task records.
type Store struct {
	mu      sync.Mutex
	tasks   map[string]domain.Task
	journal Journal
	log     zerolog.Logger
	now     func() time.Time
}

// New creates an empty store. journal may be nil.
func New(journal Journal, log zerolog.Logger) *Store {
	return &Store{
		tasks:   make(map[string]domain.Task),
		journal: journal,
		log:     log.With().Str("component", "store").Logger(),
		now:     time.Now,
	}
}

// SetClock overrides the store's clock. Tests only.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Upsert inserts or updates a task record. New tasks default to Backlog;
// lifecycle status changes must go through Transition, so an update keeps
// the stored status. Completed tasks reject all further writes.
func (s *Store) Upsert(task domain.Task) (domain.Task, error) {
	if task.ID == "" {
		return domain.Task{}, fmt.Errorf("upsert: %w", domain.ErrTaskNotFound)
	}
	task.Priority = task.Priority.Clamp()
	task.EnergyCost = clampCost(task.EnergyCost)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.tasks[task.ID]
	if ok {
		if existing.IsTerminal() {
			return domain.Task{}, fmt.Errorf("upsert %s: %w", task.ID, domain.ErrTaskTerminal)
		}
		// Descriptive and scheduling attributes update; lifecycle fields
		// stay owned by Transition.
		task.Status = existing.Status
		task.CreatedAt = existing.CreatedAt
		task.AdmittedAt = existing.AdmittedAt
		task.SwapNote = existing.SwapNote
	} else {
		if task.Status == "" {
			task.Status = domain.TaskBacklog
		}
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	s.commitLocked(task)
	return task, nil
}

// Get returns a copy of the task.
func (s *Store) Get(id string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("get %s: %w", id, domain.ErrTaskNotFound)
	}
	return t, nil
}

// ListByStatus returns all tasks in the given status, ordered by id for
// determinism.
func (s *Store) ListByStatus(status domain.TaskStatus) []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Task
	for _, t := range s.tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Transition moves a task along a legal lifecycle edge. Illegal moves fail
// with ErrInvalidTransition and leave the record untouched.
func (s *Store) Transition(id string, to domain.TaskStatus) (domain.Task, error) {
	return s.TransitionWithNote(id, to, "")
}

// TransitionWithNote is Transition plus an audit annotation (the MTS
// records why a task was swapped out).
func (s *Store) TransitionWithNote(id string, to domain.TaskStatus, note string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("transition %s: %w", id, domain.ErrTaskNotFound)
	}
	if !domain.LegalTransition(t.Status, to) {
		return domain.Task{}, fmt.Errorf("transition %s: %s → %s: %w",
			id, t.Status, to, domain.ErrInvalidTransition)
	}

	now := s.now()
	if to == domain.TaskScheduled && t.AdmittedAt.IsZero() {
		t.AdmittedAt = now
	}
	if to == domain.TaskBacklog {
		// Leaving the active set clears the admission stamp so a later
		// re-admission gets a fresh FIFO position.
		t.AdmittedAt = time.Time{}
	}
	if note != "" {
		t.SwapNote = note
	}
	t.Status = to
	t.UpdatedAt = now

	s.commitLocked(t)
	return t, nil
}

// CommittedMinutes sums the durations of Scheduled and InProgress tasks —
// the quantity the capacity invariant bounds.
func (s *Store) CommittedMinutes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committedLocked()
}

// ActiveSet returns Scheduled and InProgress tasks plus their committed
// minutes, as one consistent cut. Re-scheduling passes read this under a
// short critical section, then compute outside the lock.
func (s *Store) ActiveSet() ([]domain.Task, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Task
	for _, t := range s.tasks {
		if t.Active() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, s.committedLocked()
}

// Count returns the number of tasks in the given status.
func (s *Store) Count(status domain.TaskStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}

// Load seeds the store from journaled tasks at startup, bypassing
// transition checks.
func (s *Store) Load(tasks []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
}

func (s *Store) committedLocked() int {
	total := 0
	for _, t := range s.tasks {
		if t.Active() {
			total += t.DurationMinutes
		}
	}
	return total
}

// commitLocked applies a mutation and writes it through to the journal.
// Journal failures are logged, not raised: the in-memory record is
// authoritative and the engine must stay available.
func (s *Store) commitLocked(t domain.Task) {
	s.tasks[t.ID] = t
	if s.journal == nil {
		return
	}
	if err := s.journal.SaveTask(t); err != nil {
		s.log.Warn().Err(err).Str("task", t.ID).Msg("journal write failed")
	}
}

func clampCost(c int) int {
	if c < 1 {
		return 1
	}
	if c > 5 {
		return 5
	}
	return c
}

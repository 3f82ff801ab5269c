package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/borsa-crawler/internal/runner"
)

// RunStore provides an in-memory runner.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]runner.Run
	now  func() time.Time
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]runner.Run),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateRun stores a new run.
func (s *RunStore) CreateRun(_ context.Context, run runner.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

// UpdateRun moves a run to status, stamping start and finish times on the way.
func (s *RunStore) UpdateRun(_ context.Context, id string, status runner.Status, errText string, info *runner.Info) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("run %s: %w", id, runner.ErrRunNotFound)
	}
	run.Status = status
	run.ErrorText = errText
	if info != nil {
		cp := *info
		run.Info = &cp
	}
	now := s.now()
	if status == runner.StatusRunning && run.Started == nil {
		run.Started = &now
	}
	if status.Terminal() {
		run.Finished = &now
	}
	s.runs[id] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, id string) (runner.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return runner.Run{}, fmt.Errorf("run %s: %w", id, runner.ErrRunNotFound)
	}
	return run, nil
}

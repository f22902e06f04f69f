package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kaytu-io/kaytu-assistant/services/assistant/model"
)

// RunMemory keeps runs in process memory with the same version checks as RunSQL.
type RunMemory struct {
	mu   sync.RWMutex
	runs map[string]model.Run
}

var _ Run = (*RunMemory)(nil)

func NewRunMemory() *RunMemory {
	return &RunMemory{runs: map[string]model.Run{}}
}

func (s *RunMemory) Get(_ context.Context, id string) (*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}

	out := run.Clone()
	return &out, nil
}

func (s *RunMemory) List(_ context.Context, threadID string) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []model.Run
	for _, run := range s.runs {
		if run.ThreadID == threadID {
			runs = append(runs, run.Clone())
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt == runs[j].CreatedAt {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt > runs[j].CreatedAt
	})

	return runs, nil
}

func (s *RunMemory) Create(_ context.Context, run model.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return ErrDuplicateRun
	}

	now := time.Now()
	run = run.Clone()
	run.Version = 0
	if run.CreatedAt == 0 {
		run.CreatedAt = now.Unix()
	}
	run.UpdatedAt = now
	s.runs[run.ID] = run

	return nil
}

func (s *RunMemory) Update(_ context.Context, run model.Run) (*model.Run, error) {
	if err := run.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.runs[run.ID]
	if !ok {
		return nil, ErrRunNotFound
	}
	if current.Version != run.Version {
		return nil, ErrRunConflict
	}

	next := run.Clone()
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	next.UpdatedAt = time.Now()
	s.runs[run.ID] = next

	out := next.Clone()
	return &out, nil
}

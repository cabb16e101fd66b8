package storage

import (
	"context"
	"sort"
	"sync"

	"chialvo/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.RunRecord{}, false, ErrNotInitialized
	}
	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return cloneRun(run), true, nil
}

// ListRuns returns headers newest first; ties are ordered by id.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	headers := make([]model.RunHeader, 0, len(s.runs))
	for _, run := range s.runs {
		headers = append(headers, run.Header())
	}
	sortHeaders(headers)
	return headers, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	delete(s.runs, id)
	return nil
}

func sortHeaders(headers []model.RunHeader) {
	sort.Slice(headers, func(i, j int) bool {
		if headers[i].CreatedAtUTC == headers[j].CreatedAtUTC {
			return headers[i].ID < headers[j].ID
		}
		return headers[i].CreatedAtUTC > headers[j].CreatedAtUTC
	})
}

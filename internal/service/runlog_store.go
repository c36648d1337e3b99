package service

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/smpawlowski/covid19/internal/domain"
)

// maxRunLogs bounds the history kept per dataset.
const maxRunLogs = 100

// MemoryRunLogStore keeps run history in memory, newest last.
type MemoryRunLogStore struct {
	mu   sync.Mutex
	logs map[string][]domain.RunLog
}

// NewMemoryRunLogStore returns an empty store.
func NewMemoryRunLogStore() *MemoryRunLogStore {
	return &MemoryRunLogStore{logs: make(map[string][]domain.RunLog)}
}

func (s *MemoryRunLogStore) CreateRunLog(l *domain.RunLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := append(s.logs[l.Dataset], *l)
	if len(logs) > maxRunLogs {
		logs = slices.Delete(logs, 0, len(logs)-maxRunLogs)
	}
	s.logs[l.Dataset] = logs
	return nil
}

func (s *MemoryRunLogStore) UpdateRunLog(l *domain.RunLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := s.logs[l.Dataset]
	i := slices.IndexFunc(logs, func(x domain.RunLog) bool { return x.ID == l.ID })
	if i < 0 {
		return fmt.Errorf("run log %s not found", l.ID)
	}
	logs[i] = *l
	return nil
}

// ListRunLogs returns up to limit runs of dataset, newest first.
func (s *MemoryRunLogStore) ListRunLogs(dataset string, limit int) ([]domain.RunLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := slices.Clone(s.logs[dataset])
	slices.Reverse(logs)
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *MemoryRunLogStore) LastRun(dataset string) (*domain.RunLog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := s.logs[dataset]
	if len(logs) == 0 {
		return nil, false
	}
	last := logs[len(logs)-1]
	return &last, true
}

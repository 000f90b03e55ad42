package memory

import (
	"context"
	"github.com/molginc/actionlib/model"
	"github.com/molginc/actionlib/service/registry"
	"github.com/molginc/actionlib/service/registry/criteria"
	"sync"
)

// Service implements an in-memory, thread-safe store for goal records.
// Save stores a copy, so a record handed out by Load or List is never
// mutated by a later Save of the same goal.
type Service struct {
	records map[string]*model.GoalRecord
	mux     sync.RWMutex
}

var _ registry.Service[string, model.GoalRecord] = (*Service)(nil)

func (s *Service) Save(_ context.Context, record *model.GoalRecord) error {
	if record == nil {
		return registry.ErrNilEntity
	}
	if record.ID == "" {
		return registry.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	clone := *record
	s.records[record.ID] = &clone
	return nil
}

func (s *Service) Load(_ context.Context, id string) (*model.GoalRecord, error) {
	if id == "" {
		return nil, registry.ErrInvalidID
	}

	s.mux.RLock()
	record, ok := s.records[id]
	s.mux.RUnlock()

	if !ok {
		return nil, registry.ErrNotFound
	}
	return record, nil
}

func (s *Service) Delete(_ context.Context, id string) error {
	if id == "" {
		return registry.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if _, ok := s.records[id]; !ok {
		return registry.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *Service) List(_ context.Context, parameters ...*registry.Parameter) ([]*model.GoalRecord, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	out := make([]*model.GoalRecord, 0, len(s.records))
	for _, record := range s.records {
		if !criteria.FilterByStatus(string(record.Status), parameters) {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (s *Service) Evict(_ context.Context, predicate func(*model.GoalRecord) bool) (int, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	evicted := 0
	for id, record := range s.records {
		if predicate(record) {
			delete(s.records, id)
			evicted++
		}
	}
	return evicted, nil
}

func New() *Service {
	return &Service{records: map[string]*model.GoalRecord{}}
}

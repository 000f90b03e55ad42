package actionlib

import (
	"context"
	"log"

	"github.com/molginc/actionlib/model"
	"github.com/molginc/actionlib/service/registry"
)

// Start brings the service up: the coordinator binds its transport handlers
// and spawns the execution loop first, then the server starts consuming, so
// no goal is ever delivered without a handler in place.
func (s *Service) Start(ctx context.Context) error {
	if err := s.coordinator.Start(ctx); err != nil {
		return err
	}
	if err := s.server.Start(ctx); err != nil {
		s.coordinator.Shutdown()
		return err
	}
	return nil
}

// Shutdown stops goal ingestion, the execution loop, the event streams and
// any cached shell sessions. It is safe to call more than once.
func (s *Service) Shutdown() {
	s.server.Shutdown()
	s.coordinator.Shutdown()
	s.events.Shutdown()
	if s.shell != nil {
		if err := s.shell.Close(); err != nil {
			log.Printf("failed to close shell sessions: %v", err)
		}
	}
}

// Status returns the tracked record of one goal.
func (s *Service) Status(ctx context.Context, id string) (*model.GoalRecord, error) {
	return s.server.Status(ctx, id)
}

// Statuses lists tracked goal records, optionally filtered, e.g. by a Status
// parameter.
func (s *Service) Statuses(ctx context.Context, parameters ...*registry.Parameter) ([]*model.GoalRecord, error) {
	return s.server.Statuses(ctx, parameters...)
}

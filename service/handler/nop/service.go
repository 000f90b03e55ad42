package nop

import (
	"context"

	"github.com/molginc/actionlib/service/coordinator"
)

// Name is the action this handler registers under.
const Name = "nop"

// Service succeeds every goal without doing any work.
type Service struct{}

// Input carries no fields; the goal payload is ignored.
type Input struct{}

// New creates a new nop service
func New() *Service {
	return &Service{}
}

// Name returns the handler name
func (s *Service) Name() string {
	return Name
}

// Execute succeeds immediately.
func (s *Service) Execute(ctx context.Context, input *Input, goal coordinator.GoalHandle) error {
	goal.SetSucceeded(nil, "no operation")
	return nil
}

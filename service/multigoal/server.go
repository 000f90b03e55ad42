// Package multigoal wraps the coordinator with outcome-code semantics: user
// logic returns a terminal status instead of driving the goal handle, and
// queued goals can be canceled ahead of processing.
package multigoal

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/molginc/actionlib/model"
	"github.com/molginc/actionlib/service/coordinator"
)

// ProcessFunc runs one accepted goal and reports the outcome: SUCCEEDED,
// ABORTED or PREEMPTED. Any other value is logged and leaves the goal to the
// execution loop's non-terminal guard.
type ProcessFunc func(ctx context.Context, goal coordinator.GoalHandle) model.Status

// Server drives a coordinator through a ProcessFunc.
type Server struct {
	coordinator *coordinator.Service
	process     ProcessFunc

	mu         sync.Mutex
	cancelNext bool
}

// New wraps the given coordinator; the process function is installed as its
// execute callback.
func New(coord *coordinator.Service, process ProcessFunc) (*Server, error) {
	if coord == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if process == nil {
		return nil, fmt.Errorf("process function is required")
	}
	s := &Server{coordinator: coord, process: process}
	coord.RegisterExecuteCallback(s.execute)
	return s, nil
}

func (s *Server) execute(ctx context.Context, goal coordinator.GoalHandle) error {
	if s.takeCancelNext() {
		s.coordinator.SetAborted(nil, "goal canceled before processing")
		return nil
	}
	status := s.process(ctx, goal)
	switch status {
	case model.StatusSucceeded:
		s.coordinator.SetSucceeded(nil, "goal execution succeeded")
	case model.StatusAborted:
		s.coordinator.SetAborted(nil, "goal execution failed")
	case model.StatusPreempted:
		s.coordinator.SetPreempted(nil, "goal preempted by client")
	default:
		log.Printf("process function for goal %s returned non-terminal status %s", goal.ID(), status)
	}
	return nil
}

func (s *Server) takeCancelNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	canceled := s.cancelNext
	s.cancelNext = false
	return canceled
}

// CancelNextGoal aborts the next accepted goal before the process function
// sees it. The flag covers exactly one goal.
func (s *Server) CancelNextGoal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelNext = true
}

// CancelRemainingGoals cancels every goal waiting behind the active one.
func (s *Server) CancelRemainingGoals(text string) {
	if text == "" {
		text = "remaining goals canceled"
	}
	s.coordinator.CancelAll(text)
}

// Start starts the underlying coordinator.
func (s *Server) Start(ctx context.Context) error {
	return s.coordinator.Start(ctx)
}

// Shutdown stops the underlying coordinator.
func (s *Server) Shutdown() {
	s.coordinator.Shutdown()
}

// IsActive reports whether a goal is currently executing.
func (s *Server) IsActive() bool {
	return s.coordinator.IsActive()
}

// IsNewGoalAvailable reports whether a goal waits for promotion.
func (s *Server) IsNewGoalAvailable() bool {
	return s.coordinator.IsNewGoalAvailable()
}

// IsPreemptRequested reports the active goal's preempt flag.
func (s *Server) IsPreemptRequested() bool {
	return s.coordinator.IsPreemptRequested()
}

// QueueSize returns the number of goals waiting behind the active one.
func (s *Server) QueueSize() int {
	return s.coordinator.QueueSize()
}

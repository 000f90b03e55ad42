package coordinator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/molginc/actionlib/policy"
	"github.com/molginc/actionlib/tracing"
)

// Start binds the transport handlers and, when an execute callback is
// registered, spawns the execution loop. It fails when no callback of either
// kind is registered or when called twice.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("coordinator already started")
	}
	if s.executeCallback == nil && s.goalCallback == nil {
		s.mu.Unlock()
		return fmt.Errorf("no execute or goal callback registered")
	}
	s.started = true
	execute := s.executeCallback
	s.mu.Unlock()

	s.transport.RegisterGoalHandler(s.OnGoalReceived)
	s.transport.RegisterCancelHandler(s.OnPreemptReceived)

	if execute == nil {
		// raw goal-callback mode: the caller drives AcceptNewGoal itself
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancelLoop = cancel
	s.loopDone = done
	s.mu.Unlock()
	go s.runLoop(loopCtx, done)
	return nil
}

// Shutdown signals termination, wakes the loop and waits for it to exit. It
// is safe to call before Start and before any goal arrived.
func (s *Service) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.shutdownCh)
		s.mu.Lock()
		cancel := s.cancelLoop
		done := s.loopDone
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		if done != nil {
			<-done
		}
	})
}

// runLoop promotes and executes goals one at a time. Between goals it parks
// on the wake signal with a periodic tick as liveness backstop.
func (s *Service) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.idleWait)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		default:
		}

		if s.executeCallbackRef() == nil {
			log.Printf("execution loop has no execute callback, stopping")
			return
		}

		if s.IsNewGoalAvailable() {
			goal := s.AcceptNewGoal()
			if goal != nil {
				s.executeGoal(ctx, goal)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		case <-s.wake:
		case <-ticker.C:
		}
	}
}

// executeGoal runs the callback for one accepted goal with panic containment
// and enforces the terminal-status contract afterwards.
func (s *Service) executeGoal(ctx context.Context, goal GoalHandle) {
	execCtx := ctx
	p := policy.FromContext(ctx)
	if p == nil {
		p = s.policy
	}
	if p != nil && p.MaxGoalDuration > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(execCtx, p.MaxGoalDuration)
		defer cancel()
	}

	execCtx = NewContext(execCtx, s)
	execCtx, span := tracing.StartSpan(execCtx, "coordinator.execute", "INTERNAL")
	span.WithAttributes(map[string]string{
		"goal.id":     goal.ID(),
		"goal.action": goal.Goal().Action,
	})

	err := s.invokeExecute(execCtx, goal)
	tracing.EndSpan(span, err)

	if err != nil {
		log.Printf("execute callback for goal %s failed: %v", goal.ID(), err)
	}
	if !goal.Status().IsTerminal() {
		text := "callback did not reach a terminal state"
		if err != nil {
			text = fmt.Sprintf("callback failed: %v", err)
		}
		s.SetAborted(nil, text)
	}
}

func (s *Service) invokeExecute(ctx context.Context, goal GoalHandle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("execute callback panic: %v", r)
		}
	}()
	execute := s.executeCallbackRef()
	if execute == nil {
		return fmt.Errorf("no execute callback registered")
	}
	return execute(ctx, goal)
}

func (s *Service) executeCallbackRef() ExecuteFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executeCallback
}

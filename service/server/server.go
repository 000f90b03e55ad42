// Package server is the wire-facing side of the action service: it consumes
// goal submissions and cancel requests from the messaging queues, owns one
// Handle per goal, publishes status, feedback and result events, and keeps
// the goal registry current.
package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/molginc/actionlib/internal/clock"
	"github.com/molginc/actionlib/internal/idgen"
	"github.com/molginc/actionlib/model"
	"github.com/molginc/actionlib/policy"
	"github.com/molginc/actionlib/service/event"
	"github.com/molginc/actionlib/service/messaging"
	"github.com/molginc/actionlib/service/registry"
)

const (
	defaultStatusInterval = 200 * time.Millisecond
	defaultRetention      = 5 * time.Second
	consumeIdleDelay      = 10 * time.Millisecond
)

// Service delivers goals and cancel requests to the registered handlers. It
// owns the outer lock: handlers run one delivery at a time while the lock is
// held, and may take the coordinator's inner lock underneath it.
type Service struct {
	goals    messaging.Queue[model.Goal]
	cancels  messaging.Queue[model.CancelRequest]
	events   *event.Service
	status   *event.Publisher[model.StatusUpdate]
	feedback *event.Publisher[model.Feedback]
	result   *event.Publisher[model.Result]
	registry registry.Service[string, model.GoalRecord]
	policy   *policy.Policy

	mu       sync.Mutex
	handles  map[string]*Handle
	onGoal   func(*Handle)
	onCancel func(*Handle)
	started  bool

	source         string
	statusInterval time.Duration
	retention      time.Duration

	shutdownCh chan struct{}
	stopOnce   sync.Once
	stopLoops  context.CancelFunc
	loops      sync.WaitGroup
}

// New creates a server over the given queues, event service and registry.
func New(goals messaging.Queue[model.Goal], cancels messaging.Queue[model.CancelRequest], events *event.Service, reg registry.Service[string, model.GoalRecord], options ...Option) (*Service, error) {
	if goals == nil {
		return nil, fmt.Errorf("goal queue is required")
	}
	if cancels == nil {
		return nil, fmt.Errorf("cancel queue is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event service is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	s := &Service{
		goals:          goals,
		cancels:        cancels,
		events:         events,
		registry:       reg,
		handles:        make(map[string]*Handle),
		source:         "server",
		statusInterval: defaultStatusInterval,
		retention:      defaultRetention,
		shutdownCh:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	var err error
	if s.status, err = event.PublisherOf[model.StatusUpdate](events); err != nil {
		return nil, fmt.Errorf("failed to create status publisher: %w", err)
	}
	if s.feedback, err = event.PublisherOf[model.Feedback](events); err != nil {
		return nil, fmt.Errorf("failed to create feedback publisher: %w", err)
	}
	if s.result, err = event.PublisherOf[model.Result](events); err != nil {
		return nil, fmt.Errorf("failed to create result publisher: %w", err)
	}
	return s, nil
}

// RegisterGoalHandler installs the function invoked for every ingested goal.
// The handler runs with the server lock held.
func (s *Service) RegisterGoalHandler(handler func(*Handle)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onGoal = handler
}

// RegisterCancelHandler installs the function invoked for every cancel
// request that resolves to a known goal. The handler runs with the server
// lock held.
func (s *Service) RegisterCancelHandler(handler func(*Handle)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCancel = handler
}

// Start spawns the delivery and status goroutines.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.mu.Unlock()

	// keep every event stream drained so publishers never block on an
	// unobserved queue
	if err := event.DrainOf[model.StatusUpdate](s.events); err != nil {
		return fmt.Errorf("failed to drain status events: %w", err)
	}
	if err := event.DrainOf[model.Feedback](s.events); err != nil {
		return fmt.Errorf("failed to drain feedback events: %w", err)
	}
	if err := event.DrainOf[model.Result](s.events); err != nil {
		return fmt.Errorf("failed to drain result events: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.stopLoops = cancel
	s.mu.Unlock()

	s.loops.Add(3)
	go s.goalLoop(loopCtx)
	go s.cancelLoop(loopCtx)
	go s.statusLoop(loopCtx)
	return nil
}

// Shutdown stops the delivery goroutines and waits for them to exit. Safe to
// call before Start.
func (s *Service) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.shutdownCh)
		s.mu.Lock()
		cancel := s.stopLoops
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.loops.Wait()
	})
}

// Status returns the registry record for the given goal id.
func (s *Service) Status(ctx context.Context, id string) (*model.GoalRecord, error) {
	return s.registry.Load(ctx, id)
}

// Statuses lists registry records, optionally filtered (e.g. by a Status
// parameter).
func (s *Service) Statuses(ctx context.Context, parameters ...*registry.Parameter) ([]*model.GoalRecord, error) {
	return s.registry.List(ctx, parameters...)
}

func (s *Service) goalLoop(ctx context.Context) {
	defer s.loops.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		default:
		}
		msg, err := s.goals.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("failed to consume goal: %v", err)
			time.Sleep(consumeIdleDelay)
			continue
		}
		if msg == nil {
			// polling vendors report an empty queue as nil, nil
			time.Sleep(consumeIdleDelay)
			continue
		}
		goal := msg.T()
		if err := msg.Ack(); err != nil {
			log.Printf("failed to ack goal message: %v", err)
		}
		s.ingestGoal(goal)
	}
}

func (s *Service) cancelLoop(ctx context.Context) {
	defer s.loops.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		default:
		}
		msg, err := s.cancels.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("failed to consume cancel request: %v", err)
			time.Sleep(consumeIdleDelay)
			continue
		}
		if msg == nil {
			time.Sleep(consumeIdleDelay)
			continue
		}
		request := msg.T()
		if err := msg.Ack(); err != nil {
			log.Printf("failed to ack cancel message: %v", err)
		}
		s.ingestCancel(request)
	}
}

// ingestGoal assigns missing identity parts, creates the handle, announces
// PENDING and hands the goal to the registered handler under the server lock.
func (s *Service) ingestGoal(goal *model.Goal) {
	if goal == nil {
		return
	}
	if goal.ID.ID == "" {
		goal.ID.ID = idgen.New()
	}
	if goal.ID.Stamp.IsZero() {
		goal.ID.Stamp = clock.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handles[goal.ID.ID]; ok {
		log.Printf("duplicate goal %s ignored", goal.ID.ID)
		return
	}
	handle := newHandle(s, *goal)
	s.handles[goal.ID.ID] = handle
	handle.emitStatus(model.StatusPending, "goal received")

	if s.policy != nil {
		if ok, reason := s.policy.Admits(context.Background(), &handle.goal); !ok {
			handle.SetRejected(nil, reason)
			return
		}
	}
	if s.onGoal != nil {
		s.onGoal(handle)
	}
}

// ingestCancel resolves the request to its target handles and runs the
// cancel path for each: an id-less request targets every live goal stamped
// at or before the request time (all of them when the time is zero too).
func (s *Service) ingestCancel(request *model.CancelRequest) {
	if request == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var targets []*Handle
	if request.ID != "" {
		handle, ok := s.handles[request.ID]
		if !ok {
			log.Printf("cancel request for unknown goal %s ignored", request.ID)
			return
		}
		targets = append(targets, handle)
	} else {
		for _, handle := range s.handles {
			if handle.Status().IsTerminal() {
				continue
			}
			if request.At.IsZero() || !handle.Stamp().After(request.At) {
				targets = append(targets, handle)
			}
		}
	}
	for _, handle := range targets {
		handle.markCancelRequested()
		if s.onCancel != nil {
			s.onCancel(handle)
		}
	}
}

// statusLoop periodically republishes the status of every live goal and
// sweeps terminal goals past the retention window out of the handle map and
// the registry.
func (s *Service) statusLoop(ctx context.Context) {
	defer s.loops.Done()
	ticker := time.NewTicker(s.statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		case <-ticker.C:
			s.broadcastStatuses()
			s.sweep(ctx)
		}
	}
}

func (s *Service) broadcastStatuses() {
	s.mu.Lock()
	live := make([]*Handle, 0, len(s.handles))
	for _, handle := range s.handles {
		if terminal, _ := handle.terminalSince(); terminal {
			continue
		}
		live = append(live, handle)
	}
	s.mu.Unlock()
	for _, handle := range live {
		update := handle.statusUpdate()
		s.publishStatus(&update, handle.goal.Action)
	}
}

func (s *Service) sweep(ctx context.Context) {
	cutoff := clock.Now().Add(-s.retention)

	s.mu.Lock()
	for id, handle := range s.handles {
		if terminal, at := handle.terminalSince(); terminal && at.Before(cutoff) {
			delete(s.handles, id)
		}
	}
	s.mu.Unlock()

	evicted, err := s.registry.Evict(ctx, func(record *model.GoalRecord) bool {
		return record.Terminal() && record.UpdatedAt.Before(cutoff)
	})
	if err != nil {
		log.Printf("failed to evict terminal goal records: %v", err)
		return
	}
	if evicted > 0 {
		log.Printf("evicted %d terminal goal records", evicted)
	}
}

func (s *Service) publishStatus(update *model.StatusUpdate, action string) {
	evt := event.NewEvent(&event.Context{
		GoalID:    update.Goal.ID,
		Action:    action,
		EventType: event.TypeStatus,
		Source:    s.source,
	}, *update)
	if err := s.status.Publish(context.Background(), evt); err != nil {
		log.Printf("failed to publish status for goal %s: %v", update.Goal.ID, err)
	}
}

func (s *Service) publishFeedback(feedback *model.Feedback, action string) {
	evt := event.NewEvent(&event.Context{
		GoalID:    feedback.Goal.ID,
		Action:    action,
		EventType: event.TypeFeedback,
		Source:    s.source,
	}, *feedback)
	if err := s.feedback.Publish(context.Background(), evt); err != nil {
		log.Printf("failed to publish feedback for goal %s: %v", feedback.Goal.ID, err)
	}
}

func (s *Service) publishResult(result *model.Result, action string) {
	evt := event.NewEvent(&event.Context{
		GoalID:    result.Goal.ID,
		Action:    action,
		EventType: event.TypeResult,
		Source:    s.source,
	}, *result)
	if err := s.result.Publish(context.Background(), evt); err != nil {
		log.Printf("failed to publish result for goal %s: %v", result.Goal.ID, err)
	}
}

func (s *Service) saveRecord(record *model.GoalRecord) {
	if err := s.registry.Save(context.Background(), record); err != nil {
		log.Printf("failed to save goal record %s: %v", record.ID, err)
	}
}

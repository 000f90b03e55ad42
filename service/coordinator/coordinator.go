// Package coordinator implements single-active goal execution with
// latest-goal-wins admission: at most one goal runs at a time, a newer goal
// preempts the current one, and displaced goals wait in FIFO order until they
// are promoted or flushed.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/molginc/actionlib/model"
	"github.com/molginc/actionlib/policy"
)

// GoalHandle is the coordinator's view of one submitted goal. Implementations
// guard their own state with a leaf mutex and never call back into the
// coordinator, which keeps the lock order transport → coordinator → handle
// acyclic.
type GoalHandle interface {
	ID() string
	Stamp() time.Time
	Goal() model.Goal
	Status() model.Status

	// SetAccepted promotes a pending goal to ACTIVE.
	SetAccepted(text string)

	// Terminal transitions; once a goal is terminal further calls are
	// logged no-ops.
	SetSucceeded(result interface{}, text string)
	SetAborted(result interface{}, text string)
	SetCanceled(result interface{}, text string)
	SetRecalled(result interface{}, text string)
	SetRejected(result interface{}, text string)

	// PublishFeedback emits intermediate progress for an active goal.
	PublishFeedback(payload interface{})
}

// Transport delivers inbound goals and preempt requests. Handlers are invoked
// with the transport's delivery lock held, one event at a time.
type Transport interface {
	RegisterGoalHandler(handler func(GoalHandle))
	RegisterCancelHandler(handler func(GoalHandle))
}

// ExecuteFunc runs one accepted goal. The callback is expected to drive the
// goal to a terminal status; when it does not, the execution loop aborts the
// goal with a diagnostic.
type ExecuteFunc func(ctx context.Context, goal GoalHandle) error

// Service owns the admission state machine: the current goal with its live
// preempt flag, the next slot holding the newest admissible goal, and a FIFO
// queue of goals the slot displaced. All of it is guarded by one inner mutex;
// user callbacks are invoked only after that mutex is released.
type Service struct {
	transport Transport

	mu               sync.Mutex
	current          GoalHandle
	preemptRequested bool
	next             GoalHandle
	newGoal          bool
	nextPreempt      bool
	queue            *goalQueue

	executeCallback ExecuteFunc
	goalCallback    func()
	preemptCallback func()

	policy   *policy.Policy
	idleWait time.Duration

	wake       chan struct{}
	shutdownCh chan struct{}
	stopOnce   sync.Once
	started    bool
	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

// New creates a coordinator bound to the given transport.
func New(transport Transport, options ...Option) (*Service, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	s := &Service{
		transport:  transport,
		queue:      &goalQueue{},
		idleWait:   100 * time.Millisecond,
		wake:       make(chan struct{}, 1),
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// RegisterExecuteCallback installs the function the execution loop runs for
// every accepted goal. Execute and goal callbacks are mutually exclusive; a
// conflicting registration is logged and ignored.
func (s *Service) RegisterExecuteCallback(fn ExecuteFunc) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.goalCallback != nil {
		log.Printf("execute callback ignored: a goal callback is already registered")
		return
	}
	s.executeCallback = fn
}

// RegisterGoalCallback installs a raw notification callback invoked after
// every admitted goal; the caller then drives AcceptNewGoal itself. Mutually
// exclusive with the execute callback.
func (s *Service) RegisterGoalCallback(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.executeCallback != nil {
		log.Printf("goal callback ignored: an execute callback is already registered")
		return
	}
	s.goalCallback = fn
}

// RegisterPreemptCallback installs a notification callback fired when the
// current goal's preemption is requested.
func (s *Service) RegisterPreemptCallback(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preemptCallback = fn
}

// OnGoalReceived admits one inbound goal. A goal older than either the
// current or the pending one is recalled; an admissible goal takes the next
// slot and pushes any previous occupant to the queue tail. Admitting a goal
// while another is active requests the active goal's preemption.
func (s *Service) OnGoalReceived(h GoalHandle) {
	if h == nil {
		return
	}
	s.mu.Lock()

	if (s.current != nil && h.Stamp().Before(s.current.Stamp())) ||
		(s.next != nil && h.Stamp().Before(s.next.Stamp())) {
		h.SetRecalled(nil, "superseded by a newer goal")
		s.mu.Unlock()
		return
	}

	if s.next != nil {
		if s.nextPreempt {
			log.Printf("goal %s displaced, dropping its pending preempt request", s.next.ID())
		}
		s.queue.push(s.next)
	}
	s.next = h
	s.newGoal = true
	s.nextPreempt = false

	var callbacks []func()
	if s.current != nil && s.current.Status().IsActive() {
		s.preemptRequested = true
		if s.preemptCallback != nil {
			callbacks = append(callbacks, s.preemptCallback)
		}
	}
	if s.goalCallback != nil {
		callbacks = append(callbacks, s.goalCallback)
	}
	s.wakeLocked()
	s.mu.Unlock()

	for _, callback := range callbacks {
		callback()
	}
}

// OnPreemptReceived handles a cancel request for the given goal. Requests
// that target neither the current nor the pending goal are logged no-ops.
func (s *Service) OnPreemptReceived(h GoalHandle) {
	if h == nil {
		return
	}
	s.mu.Lock()
	switch {
	case s.current == h:
		s.preemptRequested = true
		callback := s.preemptCallback
		s.wakeLocked()
		s.mu.Unlock()
		if callback != nil {
			callback()
		}
	case s.next == h:
		s.nextPreempt = true
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		log.Printf("preempt request for goal %s ignored: not current or next", h.ID())
	}
}

// AcceptNewGoal promotes the pending goal - the slot first, then the queue
// head. A still-live previous goal is canceled as superseded. The live
// preempt flag carries over from the slot's pending preempt request and
// resets for promotions from the queue. With nothing to promote it logs and
// returns the current goal unchanged (possibly nil).
func (s *Service) AcceptNewGoal() GoalHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	var promoted GoalHandle
	preempt := false
	if s.newGoal && s.next != nil {
		promoted = s.next
		preempt = s.nextPreempt
		s.next = nil
		s.newGoal = false
		s.nextPreempt = false
	} else {
		promoted = s.queue.pop()
	}
	if promoted == nil {
		log.Printf("accept new goal ignored: no goal available")
		return s.current
	}

	if prior := s.current; prior != nil && prior != promoted && !prior.Status().IsTerminal() {
		prior.SetCanceled(nil, "superseded")
	}
	s.current = promoted
	s.preemptRequested = preempt
	promoted.SetAccepted("goal accepted")
	return promoted
}

// IsActive reports whether a goal is currently executing (PREEMPTING counts).
func (s *Service) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.Status().IsActive()
}

// IsNewGoalAvailable reports whether AcceptNewGoal would promote something.
func (s *Service) IsNewGoalAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newGoal || s.queue.size() > 0
}

// IsPreemptRequested reports the current goal's live preempt flag.
func (s *Service) IsPreemptRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preemptRequested
}

// QueueSize returns the number of displaced goals waiting behind the slot.
func (s *Service) QueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.size()
}

// CurrentGoal returns the goal most recently promoted, terminal or not.
func (s *Service) CurrentGoal() GoalHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetSucceeded terminates the current goal successfully. Pending goals stay
// queued.
func (s *Service) SetSucceeded(result interface{}, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasLiveCurrentLocked("set succeeded") {
		return
	}
	s.current.SetSucceeded(result, text)
	s.wakeLocked()
}

// SetAborted terminates the current goal as failed and flushes the slot and
// queue: every waiting goal is rejected.
func (s *Service) SetAborted(result interface{}, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasLiveCurrentLocked("set aborted") {
		return
	}
	s.current.SetAborted(result, text)
	s.flushLocked(false, "rejected after the active goal aborted")
	s.wakeLocked()
}

// SetPreempted terminates the current goal as preempted and flushes the slot
// and queue: every waiting goal is canceled.
func (s *Service) SetPreempted(result interface{}, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasLiveCurrentLocked("set preempted") {
		return
	}
	s.current.SetCanceled(result, text)
	s.flushLocked(true, "canceled after the active goal was preempted")
	s.wakeLocked()
}

// RejectAll flushes the slot and queue, rejecting every waiting goal.
func (s *Service) RejectAll(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked(false, text)
}

// CancelAll flushes the slot and queue, canceling every waiting goal.
func (s *Service) CancelAll(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked(true, text)
}

func (s *Service) hasLiveCurrentLocked(op string) bool {
	if s.current == nil || s.current.Status().IsTerminal() {
		log.Printf("%s ignored: no active goal", op)
		return false
	}
	return true
}

func (s *Service) flushLocked(cancel bool, text string) {
	terminate := func(h GoalHandle) {
		if cancel {
			h.SetCanceled(nil, text)
		} else {
			h.SetRejected(nil, text)
		}
	}
	if s.next != nil {
		terminate(s.next)
		s.next = nil
		s.newGoal = false
		s.nextPreempt = false
	}
	for _, h := range s.queue.drain() {
		terminate(h)
	}
}

func (s *Service) wakeLocked() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

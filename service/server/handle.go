package server

import (
	"log"
	"sync"
	"time"

	"github.com/molginc/actionlib/internal/clock"
	"github.com/molginc/actionlib/model"
)

// Handle is the server-side state of one submitted goal. Transitions follow
// a fixed mapping from the prior status; anything else is a logged no-op,
// and once terminal a handle never changes again. Every transition is
// published as a StatusUpdate and mirrored to the registry; terminal
// transitions additionally close Done() and publish the Result.
//
// A handle guards its fields with a leaf mutex and never acquires the server
// or coordinator locks, so its verbs are safe to call from either side.
type Handle struct {
	server    *Service
	goal      model.Goal
	createdAt time.Time

	mu         sync.Mutex
	status     model.Status
	text       string
	result     interface{}
	finishedAt time.Time
	done       chan struct{}
}

func newHandle(server *Service, goal model.Goal) *Handle {
	return &Handle{
		server:    server,
		goal:      goal,
		createdAt: clock.Now(),
		status:    model.StatusPending,
		done:      make(chan struct{}),
	}
}

// ID returns the goal's unique identifier.
func (h *Handle) ID() string { return h.goal.ID.ID }

// Stamp returns the goal's submission timestamp.
func (h *Handle) Stamp() time.Time { return h.goal.ID.Stamp }

// Goal returns the submitted goal.
func (h *Handle) Goal() model.Goal { return h.goal }

// Status returns the goal's current lifecycle status.
func (h *Handle) Status() model.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Text returns the explanation attached to the latest transition.
func (h *Handle) Text() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.text
}

// Done returns a channel closed when the goal reaches a terminal status.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the goal's final result; ok is false until the goal is
// terminal.
func (h *Handle) Result() (model.Result, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.status.IsTerminal() {
		return model.Result{}, false
	}
	return model.Result{
		Goal:    h.goal.ID,
		Status:  h.status,
		Payload: h.result,
		Text:    h.text,
		At:      h.finishedAt,
	}, true
}

// SetAccepted promotes a pending goal to ACTIVE.
func (h *Handle) SetAccepted(text string) {
	h.mu.Lock()
	if h.status != model.StatusPending {
		status := h.status
		h.mu.Unlock()
		log.Printf("set accepted ignored for goal %s: status is %s", h.goal.ID.ID, status)
		return
	}
	h.status = model.StatusActive
	h.text = text
	h.mu.Unlock()
	h.emitStatus(model.StatusActive, text)
}

// SetSucceeded completes an active goal successfully.
func (h *Handle) SetSucceeded(result interface{}, text string) {
	h.mu.Lock()
	if !h.status.IsActive() {
		status := h.status
		h.mu.Unlock()
		log.Printf("set succeeded ignored for goal %s: status is %s", h.goal.ID.ID, status)
		return
	}
	h.completeLocked(model.StatusSucceeded, result, text)
	h.mu.Unlock()
	h.emitTerminal(model.StatusSucceeded, result, text)
}

// SetAborted fails the goal; valid from any non-terminal status.
func (h *Handle) SetAborted(result interface{}, text string) {
	h.mu.Lock()
	if h.status.IsTerminal() {
		status := h.status
		h.mu.Unlock()
		log.Printf("set aborted ignored for goal %s: status is %s", h.goal.ID.ID, status)
		return
	}
	h.completeLocked(model.StatusAborted, result, text)
	h.mu.Unlock()
	h.emitTerminal(model.StatusAborted, result, text)
}

// SetCanceled ends the goal on a cancel path: a pending goal becomes
// CANCELED, an active one PREEMPTED.
func (h *Handle) SetCanceled(result interface{}, text string) {
	h.mu.Lock()
	if h.status.IsTerminal() {
		status := h.status
		h.mu.Unlock()
		log.Printf("set canceled ignored for goal %s: status is %s", h.goal.ID.ID, status)
		return
	}
	to := model.StatusPreempted
	if h.status == model.StatusPending {
		to = model.StatusCanceled
	}
	h.completeLocked(to, result, text)
	h.mu.Unlock()
	h.emitTerminal(to, result, text)
}

// SetRecalled disqualifies a goal that was never promoted.
func (h *Handle) SetRecalled(result interface{}, text string) {
	h.terminatePending(model.StatusRecalled, result, text, "set recalled")
}

// SetRejected refuses a goal that was never promoted.
func (h *Handle) SetRejected(result interface{}, text string) {
	h.terminatePending(model.StatusRejected, result, text, "set rejected")
}

func (h *Handle) terminatePending(to model.Status, result interface{}, text string, op string) {
	h.mu.Lock()
	if h.status != model.StatusPending {
		status := h.status
		h.mu.Unlock()
		log.Printf("%s ignored for goal %s: status is %s", op, h.goal.ID.ID, status)
		return
	}
	h.completeLocked(to, result, text)
	h.mu.Unlock()
	h.emitTerminal(to, result, text)
}

// PublishFeedback emits intermediate progress; feedback for a terminal goal
// is dropped.
func (h *Handle) PublishFeedback(payload interface{}) {
	h.mu.Lock()
	if h.status.IsTerminal() {
		h.mu.Unlock()
		log.Printf("feedback for goal %s dropped: goal is terminal", h.goal.ID.ID)
		return
	}
	h.mu.Unlock()
	h.server.publishFeedback(&model.Feedback{
		Goal:    h.goal.ID,
		Payload: payload,
		At:      clock.Now(),
	}, h.goal.Action)
}

// markCancelRequested flips an active goal to PREEMPTING when a cancel
// request arrives for it; any other status is left alone.
func (h *Handle) markCancelRequested() {
	h.mu.Lock()
	if h.status != model.StatusActive {
		h.mu.Unlock()
		return
	}
	h.status = model.StatusPreempting
	h.mu.Unlock()
	h.emitStatus(model.StatusPreempting, "cancel requested")
}

func (h *Handle) completeLocked(to model.Status, result interface{}, text string) {
	h.status = to
	h.result = result
	h.text = text
	h.finishedAt = clock.Now()
	close(h.done)
}

func (h *Handle) emitStatus(status model.Status, text string) {
	h.server.publishStatus(&model.StatusUpdate{
		Goal:   h.goal.ID,
		Status: status,
		Text:   text,
		At:     clock.Now(),
	}, h.goal.Action)
	h.server.saveRecord(h.record())
}

func (h *Handle) emitTerminal(status model.Status, result interface{}, text string) {
	now := clock.Now()
	h.server.publishStatus(&model.StatusUpdate{
		Goal:   h.goal.ID,
		Status: status,
		Text:   text,
		At:     now,
	}, h.goal.Action)
	h.server.publishResult(&model.Result{
		Goal:    h.goal.ID,
		Status:  status,
		Payload: result,
		Text:    text,
		At:      now,
	}, h.goal.Action)
	h.server.saveRecord(h.record())
}

func (h *Handle) record() *model.GoalRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &model.GoalRecord{
		ID:        h.goal.ID.ID,
		Action:    h.goal.Action,
		Stamp:     h.goal.ID.Stamp,
		Status:    h.status,
		Text:      h.text,
		Payload:   h.goal.Payload,
		Result:    h.result,
		CreatedAt: h.createdAt,
		UpdatedAt: clock.Now(),
	}
}

func (h *Handle) statusUpdate() model.StatusUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return model.StatusUpdate{
		Goal:   h.goal.ID,
		Status: h.status,
		Text:   h.text,
		At:     clock.Now(),
	}
}

// terminalSince reports whether the goal is terminal and since when.
func (h *Handle) terminalSince() (bool, time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status.IsTerminal(), h.finishedAt
}

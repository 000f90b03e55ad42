package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/molginc/actionlib/internal/clock"
	"github.com/molginc/actionlib/model"
)

// ClientGoal tracks one submitted goal on the client side.
type ClientGoal struct {
	client *Client
	goal   model.Goal

	mu       sync.Mutex
	status   model.Status
	text     string
	result   *model.Result
	active   bool
	done     chan struct{}
	doneOnce sync.Once

	onActive   func()
	onFeedback func(model.Feedback)
	onDone     func(model.Result)
}

func newClientGoal(client *Client, goal model.Goal) *ClientGoal {
	return &ClientGoal{
		client: client,
		goal:   goal,
		status: model.StatusPending,
		done:   make(chan struct{}),
	}
}

// ID returns the goal's unique identifier.
func (g *ClientGoal) ID() string { return g.goal.ID.ID }

// GoalID returns the goal's full identity.
func (g *ClientGoal) GoalID() model.GoalID { return g.goal.ID }

// Status returns the last status reported by the server.
func (g *ClientGoal) Status() model.Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// StatusText returns the explanation attached to the last status.
func (g *ClientGoal) StatusText() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.text
}

// Result returns the goal's result; ok is false until the result arrived.
func (g *ClientGoal) Result() (model.Result, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.result == nil {
		return model.Result{}, false
	}
	return *g.result, true
}

// Done returns a channel closed once the result arrived.
func (g *ClientGoal) Done() <-chan struct{} { return g.done }

// WaitForResult blocks until the goal's result arrives or ctx ends.
func (g *ClientGoal) WaitForResult(ctx context.Context) (model.Result, error) {
	select {
	case <-ctx.Done():
		return model.Result{}, ctx.Err()
	case <-g.done:
	}
	result, ok := g.Result()
	if !ok {
		return model.Result{}, fmt.Errorf("goal %s completed without a result", g.ID())
	}
	return result, nil
}

// Cancel asks the server to preempt this goal.
func (g *ClientGoal) Cancel(ctx context.Context) error {
	request := &model.CancelRequest{ID: g.goal.ID.ID, At: clock.Now()}
	if err := g.client.cancels.Publish(ctx, request); err != nil {
		return fmt.Errorf("failed to publish cancel request: %w", err)
	}
	return nil
}

func (g *ClientGoal) updateStatus(update model.StatusUpdate) {
	g.mu.Lock()
	if g.status.IsTerminal() {
		g.mu.Unlock()
		return
	}
	g.status = update.Status
	g.text = update.Text
	notifyActive := update.Status.IsActive() && !g.active
	if notifyActive {
		g.active = true
	}
	onActive := g.onActive
	g.mu.Unlock()
	if notifyActive && onActive != nil {
		onActive()
	}
}

func (g *ClientGoal) deliverFeedback(feedback model.Feedback) {
	g.mu.Lock()
	onFeedback := g.onFeedback
	g.mu.Unlock()
	if onFeedback != nil {
		onFeedback(feedback)
	}
}

func (g *ClientGoal) deliverResult(result model.Result) {
	g.mu.Lock()
	g.result = &result
	g.status = result.Status
	g.text = result.Text
	onDone := g.onDone
	g.mu.Unlock()
	g.doneOnce.Do(func() { close(g.done) })
	if onDone != nil {
		onDone(result)
	}
}

package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/molginc/actionlib/model"
)

// Multi keeps a book of every goal sent through it and answers aggregate
// queries against the most recently sent one. It deliberately exposes the
// wrapped client through an accessor instead of forwarding its methods.
type Multi struct {
	client *Client

	mu    sync.Mutex
	goals []*ClientGoal
}

// NewMulti wraps an existing client.
func NewMulti(client *Client) (*Multi, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	return &Multi{client: client}, nil
}

// Client returns the wrapped client.
func (m *Multi) Client() *Client { return m.client }

// SendGoal submits a goal and tracks it.
func (m *Multi) SendGoal(ctx context.Context, action string, payload interface{}, options ...GoalOption) (*ClientGoal, error) {
	goal, err := m.client.SendGoal(ctx, action, payload, options...)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.goals = append(m.goals, goal)
	m.mu.Unlock()
	return goal, nil
}

// NumGoals returns the number of tracked goals.
func (m *Multi) NumGoals() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.goals)
}

// GoalID returns the most recent goal's id, empty when none was sent.
func (m *Multi) GoalID() string {
	if goal := m.latest(); goal != nil {
		return goal.ID()
	}
	return ""
}

// GoalState returns the most recent goal's status, empty when none was sent.
func (m *Multi) GoalState() model.Status {
	if goal := m.latest(); goal != nil {
		return goal.Status()
	}
	return ""
}

// StatusText returns the most recent goal's status text.
func (m *Multi) StatusText() string {
	if goal := m.latest(); goal != nil {
		return goal.StatusText()
	}
	return ""
}

// WaitForResult blocks until the most recent goal's result arrives.
func (m *Multi) WaitForResult(ctx context.Context) (model.Result, error) {
	goal := m.latest()
	if goal == nil {
		return model.Result{}, fmt.Errorf("no goal was sent")
	}
	return goal.WaitForResult(ctx)
}

// Result returns the most recent goal's result when it is available and
// stops tracking that goal afterwards.
func (m *Multi) Result() (model.Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.goals) == 0 {
		return model.Result{}, false
	}
	goal := m.goals[len(m.goals)-1]
	result, ok := goal.Result()
	if !ok {
		return model.Result{}, false
	}
	m.goals = m.goals[:len(m.goals)-1]
	return result, true
}

// RemoveDone prunes every tracked goal that already has a result and returns
// how many were removed.
func (m *Multi) RemoveDone() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.goals[:0]
	removed := 0
	for _, goal := range m.goals {
		if _, ok := goal.Result(); ok {
			removed++
			continue
		}
		kept = append(kept, goal)
	}
	for i := len(kept); i < len(m.goals); i++ {
		m.goals[i] = nil
	}
	m.goals = kept
	return removed
}

// CancelAll asks the server to preempt every tracked goal that has no result
// yet.
func (m *Multi) CancelAll(ctx context.Context) error {
	m.mu.Lock()
	pending := make([]*ClientGoal, 0, len(m.goals))
	for _, goal := range m.goals {
		if _, ok := goal.Result(); !ok {
			pending = append(pending, goal)
		}
	}
	m.mu.Unlock()
	for _, goal := range pending {
		if err := goal.Cancel(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *Multi) latest() *ClientGoal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.goals) == 0 {
		return nil
	}
	return m.goals[len(m.goals)-1]
}

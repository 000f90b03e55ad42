// Package client submits goals to an action server over the messaging
// queues and tracks their progress through the status, feedback and result
// event streams.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/molginc/actionlib/internal/clock"
	"github.com/molginc/actionlib/internal/idgen"
	"github.com/molginc/actionlib/model"
	"github.com/molginc/actionlib/service/event"
	"github.com/molginc/actionlib/service/messaging"
	"github.com/molginc/actionlib/tracing"
)

// Client tracks every goal it sent until the goal's result arrives.
type Client struct {
	goals   messaging.Queue[model.Goal]
	cancels messaging.Queue[model.CancelRequest]

	statuses *event.Subscription[model.StatusUpdate]
	feedback *event.Subscription[model.Feedback]
	results  *event.Subscription[model.Result]

	mu      sync.Mutex
	tracked map[string]*ClientGoal
	closed  bool

	stopOnce sync.Once
}

// New creates a client bound to the server's goal and cancel queues and its
// event service.
func New(goals messaging.Queue[model.Goal], cancels messaging.Queue[model.CancelRequest], events *event.Service) (*Client, error) {
	if goals == nil {
		return nil, fmt.Errorf("goal queue is required")
	}
	if cancels == nil {
		return nil, fmt.Errorf("cancel queue is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event service is required")
	}
	c := &Client{
		goals:   goals,
		cancels: cancels,
		tracked: make(map[string]*ClientGoal),
	}
	var err error
	if c.statuses, err = event.SubscribeOf[model.StatusUpdate](events, 0); err != nil {
		return nil, fmt.Errorf("failed to subscribe to statuses: %w", err)
	}
	if c.feedback, err = event.SubscribeOf[model.Feedback](events, 0); err != nil {
		return nil, fmt.Errorf("failed to subscribe to feedback: %w", err)
	}
	if c.results, err = event.SubscribeOf[model.Result](events, 0); err != nil {
		return nil, fmt.Errorf("failed to subscribe to results: %w", err)
	}
	go c.watchStatuses()
	go c.watchFeedback()
	go c.watchResults()
	return c, nil
}

// SendGoal publishes a goal for the given action and returns its tracker.
// The client assigns the goal identity so tracking starts before the server
// sees the goal.
func (c *Client) SendGoal(ctx context.Context, action string, payload interface{}, options ...GoalOption) (*ClientGoal, error) {
	goal := model.Goal{
		ID:      model.GoalID{ID: idgen.New(), Stamp: clock.Now()},
		Action:  action,
		Payload: payload,
	}
	tracker := newClientGoal(c, goal)
	for _, opt := range options {
		opt(tracker)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("client is closed")
	}
	c.tracked[goal.ID.ID] = tracker
	c.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "client.send_goal", "PRODUCER")
	span.WithAttributes(map[string]string{
		"goal.id":     goal.ID.ID,
		"goal.action": action,
	})
	err := c.goals.Publish(ctx, &goal)
	tracing.EndSpan(span, err)
	if err != nil {
		c.mu.Lock()
		delete(c.tracked, goal.ID.ID)
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to publish goal: %w", err)
	}
	return tracker, nil
}

// Close unsubscribes from the event streams; in-flight trackers stop
// updating.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.statuses.Close()
		c.feedback.Close()
		c.results.Close()
	})
}

func (c *Client) lookup(id string) *ClientGoal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracked[id]
}

// forget drops a tracker once its result was delivered; late status events
// for it are no longer interesting.
func (c *Client) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tracked, id)
}

func (c *Client) watchStatuses() {
	for evt := range c.statuses.Events() {
		if evt == nil {
			continue
		}
		if tracker := c.lookup(evt.Data.Goal.ID); tracker != nil {
			tracker.updateStatus(evt.Data)
		}
	}
}

func (c *Client) watchFeedback() {
	for evt := range c.feedback.Events() {
		if evt == nil {
			continue
		}
		if tracker := c.lookup(evt.Data.Goal.ID); tracker != nil {
			tracker.deliverFeedback(evt.Data)
		}
	}
}

func (c *Client) watchResults() {
	for evt := range c.results.Events() {
		if evt == nil {
			continue
		}
		if tracker := c.lookup(evt.Data.Goal.ID); tracker != nil {
			tracker.deliverResult(evt.Data)
			c.forget(evt.Data.Goal.ID)
		}
	}
}

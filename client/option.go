package client

import "github.com/molginc/actionlib/model"

// GoalOption customises one SendGoal call.
type GoalOption func(g *ClientGoal)

// WithOnActive installs a callback fired once, when the server promotes the
// goal to ACTIVE.
func WithOnActive(fn func()) GoalOption {
	return func(g *ClientGoal) {
		g.onActive = fn
	}
}

// WithOnFeedback installs a callback fired for every feedback event the
// server publishes for this goal.
func WithOnFeedback(fn func(model.Feedback)) GoalOption {
	return func(g *ClientGoal) {
		g.onFeedback = fn
	}
}

// WithOnDone installs a callback fired once, when the goal's result arrives.
func WithOnDone(fn func(model.Result)) GoalOption {
	return func(g *ClientGoal) {
		g.onDone = fn
	}
}

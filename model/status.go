package model

import "time"

// Status describes where a goal is in its lifecycle.
type Status string

const (
	// StatusPending marks a goal that was received but not yet promoted.
	StatusPending Status = "PENDING"
	// StatusActive marks the single goal currently executing.
	StatusActive Status = "ACTIVE"
	// StatusPreempting marks an active goal whose cancellation has been
	// requested but not yet acknowledged by the callback.
	StatusPreempting Status = "PREEMPTING"

	// StatusSucceeded - the callback completed the goal successfully.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusAborted - the callback failed, panicked or never reached a
	// terminal state.
	StatusAborted Status = "ABORTED"
	// StatusPreempted - the goal was active and got superseded or canceled.
	StatusPreempted Status = "PREEMPTED"
	// StatusRejected - the goal was flushed from the queue after its
	// predecessor aborted.
	StatusRejected Status = "REJECTED"
	// StatusRecalled - the goal was disqualified at admission, before it was
	// ever queued.
	StatusRecalled Status = "RECALLED"
	// StatusCanceled - the goal was flushed from the queue after its
	// predecessor was preempted, or canceled while still pending.
	StatusCanceled Status = "CANCELED"
)

// IsTerminal reports whether no further transition can happen.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusAborted, StatusPreempted, StatusRejected, StatusRecalled, StatusCanceled:
		return true
	}
	return false
}

// IsActive reports whether the goal is the one currently executing;
// PREEMPTING still counts as active.
func (s Status) IsActive() bool {
	return s == StatusActive || s == StatusPreempting
}

// StatusUpdate is published whenever a goal changes status, and periodically
// as part of the full status snapshot.
type StatusUpdate struct {
	Goal   GoalID    `json:"goal" yaml:"goal"`
	Status Status    `json:"status" yaml:"status"`
	Text   string    `json:"text,omitempty" yaml:"text,omitempty"`
	At     time.Time `json:"at" yaml:"at"`
}

// Feedback carries intermediate progress published by the executing callback.
type Feedback struct {
	Goal    GoalID      `json:"goal" yaml:"goal"`
	Payload interface{} `json:"payload,omitempty" yaml:"payload,omitempty"`
	At      time.Time   `json:"at" yaml:"at"`
}

// Result is published exactly once per goal, together with its terminal
// status.
type Result struct {
	Goal    GoalID      `json:"goal" yaml:"goal"`
	Status  Status      `json:"status" yaml:"status"`
	Payload interface{} `json:"payload,omitempty" yaml:"payload,omitempty"`
	Text    string      `json:"text,omitempty" yaml:"text,omitempty"`
	At      time.Time   `json:"at" yaml:"at"`
}

package model

import (
	"fmt"
	"time"
)

// GoalID identifies a single submitted goal. The ID is an opaque unique
// string; Stamp is the submission timestamp used by the admission rule —
// among competing goals the one with the latest stamp wins.
type GoalID struct {
	ID    string    `json:"id" yaml:"id"`
	Stamp time.Time `json:"stamp" yaml:"stamp"`
}

// IsZero reports whether the identity carries neither an ID nor a stamp.
func (g GoalID) IsZero() bool {
	return g.ID == "" && g.Stamp.IsZero()
}

// OlderThan reports whether this goal was submitted strictly before other.
// Equal stamps are not older; ties are admissible and break by arrival order.
func (g GoalID) OlderThan(other GoalID) bool {
	return g.Stamp.Before(other.Stamp)
}

func (g GoalID) String() string {
	return fmt.Sprintf("%s@%s", g.ID, g.Stamp.Format(time.RFC3339Nano))
}

// Goal represents one unit of requested work.
type Goal struct {
	// ID is the goal identity; the server fills missing parts on arrival.
	ID GoalID `json:"id" yaml:"id"`

	// Action names the handler that should execute this goal. Optional when
	// a server runs a single execute callback.
	Action string `json:"action,omitempty" yaml:"action,omitempty"`

	// Payload is opaque to the coordinator; typed handlers convert it.
	Payload interface{} `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// NewGoal returns a goal for the given action and payload with an unassigned
// identity; the server assigns ID and stamp at ingestion.
func NewGoal(action string, payload interface{}) *Goal {
	return &Goal{Action: action, Payload: payload}
}

// CancelRequest asks the server to preempt the goal with the given ID.
type CancelRequest struct {
	ID string    `json:"id" yaml:"id"`
	At time.Time `json:"at,omitempty" yaml:"at,omitempty"`
}

package model

import "time"

// GoalRecord is the registry view of a goal: a snapshot the server
// refreshes on every status transition and keeps for status queries
// after the live handle is gone.
type GoalRecord struct {
	ID        string      `json:"id" yaml:"id"`
	Action    string      `json:"action,omitempty" yaml:"action,omitempty"`
	Stamp     time.Time   `json:"stamp" yaml:"stamp"`
	Status    Status      `json:"status" yaml:"status"`
	Text      string      `json:"text,omitempty" yaml:"text,omitempty"`
	Payload   interface{} `json:"payload,omitempty" yaml:"payload,omitempty"`
	Result    interface{} `json:"result,omitempty" yaml:"result,omitempty"`
	CreatedAt time.Time   `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt" yaml:"updatedAt"`
}

// Terminal reports whether the recorded goal reached a final status.
func (r *GoalRecord) Terminal() bool {
	return r.Status.IsTerminal()
}

// Package progress provides a lightweight tracker that keeps aggregated
// step counters (steps total, completed, failed, …) for a single goal
// execution.  The tracker instance lives in the callback context – every
// component that receives the context can atomically update the counters via
// the Delta helper without requiring a global registry.

package progress

import (
	"context"
	"sync"
	"time"
)

// Delta represents an incremental counter change emitted by a goal callback
// or one of the bundled handlers.  The fields are signed and therefore can be
// either positive (increment) or negative (decrement).
type Delta struct {
	Total     int
	Completed int
	Skipped   int
	Failed    int
	Running   int
	Pending   int
}

// Progress keeps aggregated step counters for one executing goal.  It is
// safe for concurrent use and doubles as a feedback payload.
type Progress struct {
	// Identification – informative only, filled when execution starts.
	GoalID    string    `json:"goalID,omitempty" yaml:"goalID,omitempty"`
	Action    string    `json:"action,omitempty" yaml:"action,omitempty"`
	Stage     string    `json:"stage,omitempty" yaml:"stage,omitempty"`
	StartedAt time.Time `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`

	// Counters – modified via Update().
	TotalSteps     int `json:"totalSteps" yaml:"totalSteps"`
	CompletedSteps int `json:"completedSteps" yaml:"completedSteps"`
	SkippedSteps   int `json:"skippedSteps,omitempty" yaml:"skippedSteps,omitempty"`
	FailedSteps    int `json:"failedSteps,omitempty" yaml:"failedSteps,omitempty"`
	RunningSteps   int `json:"runningSteps,omitempty" yaml:"runningSteps,omitempty"`
	PendingSteps   int `json:"pendingSteps,omitempty" yaml:"pendingSteps,omitempty"`

	sync.Mutex `json:"-" yaml:"-"`
	onChange   func(Progress)
}

// Update applies the supplied delta to the tracker.  It is safe to call from
// multiple goroutines.  If an onChange callback has been registered it will be
// invoked with a copy of the updated tracker outside the critical section so
// that the callback can perform slow operations (e.g. feedback publication,
// I/O) without blocking the execution loop.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}

	p.Lock()

	p.TotalSteps += d.Total
	p.CompletedSteps += d.Completed
	p.SkippedSteps += d.Skipped
	p.FailedSteps += d.Failed
	p.RunningSteps += d.Running
	p.PendingSteps += d.Pending

	// Make a value-copy for the callback while we still hold the lock to
	// avoid seeing partially updated counters.
	snapshot := *p
	cb := p.onChange

	p.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// SetStage records the phase the goal is currently in and notifies the
// onChange callback when one is registered.
func (p *Progress) SetStage(stage string) {
	if p == nil {
		return
	}
	p.Lock()
	p.Stage = stage
	snapshot := *p
	cb := p.onChange
	p.Unlock()
	if cb != nil {
		cb(snapshot)
	}
}

// Percent reports completed work as 0-100; with an unknown total it stays at
// zero.
func (p *Progress) Percent() float64 {
	if p == nil {
		return 0
	}
	p.Lock()
	defer p.Unlock()
	if p.TotalSteps <= 0 {
		return 0
	}
	percent := float64(p.CompletedSteps) / float64(p.TotalSteps) * 100
	if percent > 100 {
		percent = 100
	}
	return percent
}

// Snapshot returns a copy of the tracker suitable for read-only inspection.
func (p *Progress) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.Lock()
	defer p.Unlock()
	return *p
}

// OnChange registers a callback that is invoked after every successful
// Update.  Passing nil disables the callback.  Only one callback can be
// active; subsequent calls overwrite the previous value.
func (p *Progress) OnChange(cb func(Progress)) {
	if p == nil {
		return
	}
	p.Lock()
	p.onChange = cb
	p.Unlock()
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithNewTracker creates a new Progress tracker, embeds it in a derived
// context and returns both.  The caller may optionally pass an onChange
// callback that will be invoked after every counter update.
func WithNewTracker(ctx context.Context, goalID, action string, onChange func(Progress)) (context.Context, *Progress) {
	if ctx == nil {
		ctx = context.Background()
	}
	tr := &Progress{
		GoalID:    goalID,
		Action:    action,
		StartedAt: time.Now(),
		onChange:  onChange,
	}
	return context.WithValue(ctx, trackerKey, tr), tr
}

// FromContext extracts the Progress tracker from ctx.  It returns (tracker,
// ok).  The second return value is false when the context carries no tracker.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}

// GetSnapshot is a convenience wrapper that combines FromContext and
// Snapshot.  The boolean return value is false when the context does not
// carry a tracker.
func GetSnapshot(ctx context.Context) (Progress, bool) {
	if tr, ok := FromContext(ctx); ok {
		return tr.Snapshot(), true
	}
	return Progress{}, false
}

// UpdateCtx is a helper that looks up the tracker in ctx (if any) and applies
// the supplied delta.
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}

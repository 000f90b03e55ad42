// Package policy provides a simple, optional per-action admission layer that
// can be attached to a server via context.  It is deliberately decoupled from
// the rest of the module so that using it is entirely opt-in – servers that do
// not embed the Policy in their context keep the original "auto" behaviour.

package policy

import (
	"context"
	"strings"
	"time"

	"github.com/molginc/actionlib/model"
)

// Admission modes recognised by the server.
const (
	ModeAsk  = "ask"  // ask before admitting every goal
	ModeAuto = "auto" // admit automatically (default)
	ModeDeny = "deny" // reject every goal
)

// AskFunc is invoked when Mode==ask.  Returning true admits the goal, false
// rejects it.  Implementations MAY mutate the policy (for example, switching
// to ModeAuto after the first approval).
type AskFunc func(
	ctx context.Context,
	action string,
	goal *model.Goal,
	p *Policy,
) bool

// Policy represents the admission settings for a running server.
//
//   - Mode controls the high-level behaviour (ask / auto / deny).
//   - AllowList, BlockList allow coarse filtering by action name regardless
//     of Mode.
//   - Ask is only used when Mode==ask.
//   - MaxGoalDuration, when positive, caps how long a single goal callback
//     may run before its context is cancelled.
//
// A nil *Policy means "admit everything" and is therefore the zero-cost
// default.
type Policy struct {
	Mode            string        // ask / auto / deny      (default = auto)
	AllowList       []string      // whitelist (empty => all)
	BlockList       []string      // blacklist
	Ask             AskFunc       // used only when Mode==ask
	MaxGoalDuration time.Duration // 0 => unbounded
}

// Config represents the declarative, serialisable part of a Policy.
type Config struct {
	Mode              string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList         []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList         []string `json:"block,omitempty" yaml:"block,omitempty"`
	MaxGoalDurationMs int      `json:"maxGoalDurationMs,omitempty" yaml:"maxGoalDurationMs,omitempty"`
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{
		Mode:              p.Mode,
		AllowList:         append([]string(nil), p.AllowList...),
		BlockList:         append([]string(nil), p.BlockList...),
		MaxGoalDurationMs: int(p.MaxGoalDuration / time.Millisecond),
	}
}

// FromConfig converts a stored Config back to a runtime Policy (without
// AskFunc).
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		Mode:            c.Mode,
		AllowList:       append([]string(nil), c.AllowList...),
		BlockList:       append([]string(nil), c.BlockList...),
		MaxGoalDuration: time.Duration(c.MaxGoalDurationMs) * time.Millisecond,
	}
}

// IsAllowed evaluates AllowList / BlockList.  Both lists match by exact
// string comparison (case-insensitive) of the action name.
func (p *Policy) IsAllowed(action string) bool {
	if p == nil {
		return true
	}

	normalized := strings.ToLower(action)

	// BlockList has priority.
	for _, b := range p.BlockList {
		if normalized == strings.ToLower(b) {
			return false
		}
	}

	// AllowList – if empty everything is allowed, otherwise only the listed
	// entries.
	if len(p.AllowList) == 0 {
		return true
	}

	for _, a := range p.AllowList {
		if normalized == strings.ToLower(a) {
			return true
		}
	}

	return false
}

// Admits decides whether a goal may enter the server. It returns false with
// a short reason suitable for the rejection result text.
func (p *Policy) Admits(ctx context.Context, goal *model.Goal) (bool, string) {
	if p == nil {
		return true, ""
	}
	if !p.IsAllowed(goal.Action) {
		return false, "action blocked by policy"
	}
	switch p.Mode {
	case ModeDeny:
		return false, "admission denied by policy"
	case ModeAsk:
		if p.Ask != nil && !p.Ask(ctx, goal.Action, goal, p) {
			return false, "admission declined"
		}
	}
	return true, ""
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts (*Policy, ok).
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}

package coordinator

import (
	"time"

	"github.com/molginc/actionlib/policy"
)

type Option func(s *Service)

// WithIdleWait overrides how long the execution loop parks between wake-up
// checks when no goal is available (default 100ms).
func WithIdleWait(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.idleWait = interval
		}
	}
}

// WithPolicy attaches an execution policy; a per-call policy embedded in the
// incoming context takes precedence.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

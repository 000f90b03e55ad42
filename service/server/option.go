package server

import (
	"time"

	"github.com/molginc/actionlib/policy"
)

type Option func(s *Service)

// WithStatusInterval overrides the periodic status broadcast interval
// (default 200ms).
func WithStatusInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.statusInterval = interval
		}
	}
}

// WithRetention overrides how long terminal goals stay queryable before the
// sweep evicts them (default 5s).
func WithRetention(retention time.Duration) Option {
	return func(s *Service) {
		if retention > 0 {
			s.retention = retention
		}
	}
}

// WithPolicy installs an admission policy; goals it refuses are rejected at
// ingestion, before any handler sees them.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithSource overrides the Source tag stamped on published events.
func WithSource(source string) Option {
	return func(s *Service) {
		if source != "" {
			s.source = source
		}
	}
}

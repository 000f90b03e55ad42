package actionlib

import (
	"time"

	"github.com/molginc/actionlib/model"
	"github.com/molginc/actionlib/policy"
	"github.com/molginc/actionlib/service/coordinator"
	"github.com/molginc/actionlib/service/event"
	"github.com/molginc/actionlib/service/messaging"
	"github.com/molginc/actionlib/service/registry"
	"github.com/molginc/actionlib/service/server"
	"github.com/molginc/actionlib/tracing"
	"github.com/viant/x"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option mutates the facade service during construction.
type Option func(s *Service)

// WithConfig sets the service configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithConfigURL loads the configuration from the given afs URL; it takes
// precedence over WithConfig.
func WithConfigURL(URL string) Option {
	return func(s *Service) {
		s.configURL = URL
	}
}

// WithExecuteCallback installs a single execute callback instead of the
// default per-action mux.
func WithExecuteCallback(fn coordinator.ExecuteFunc) Option {
	return func(s *Service) {
		s.executeCallback = fn
	}
}

// WithGoalCallback switches the coordinator to raw notification mode: no
// execution loop runs and the caller drives AcceptNewGoal itself.
func WithGoalCallback(fn func()) Option {
	return func(s *Service) {
		s.goalCallback = fn
	}
}

// WithPreemptCallback installs a notification callback fired when the current
// goal's preemption is requested.
func WithPreemptCallback(fn func()) Option {
	return func(s *Service) {
		s.preemptCallback = fn
	}
}

// WithHandler registers an execute callback under an action name together
// with its goal payload prototype.
func WithHandler(name string, prototype interface{}, handler coordinator.ExecuteFunc) Option {
	return func(s *Service) {
		s.registrations = append(s.registrations, registration{name: name, prototype: prototype, handler: handler})
	}
}

// WithExtensionTypes seeds the action registry's type registry.
func WithExtensionTypes(types ...*x.Type) Option {
	return func(s *Service) {
		s.extensionTypes = types
	}
}

// WithGoalQueue replaces the goal submission queue.
func WithGoalQueue(queue messaging.Queue[model.Goal]) Option {
	return func(s *Service) {
		s.goals = queue
	}
}

// WithCancelQueue replaces the cancel request queue.
func WithCancelQueue(queue messaging.Queue[model.CancelRequest]) Option {
	return func(s *Service) {
		s.cancels = queue
	}
}

// WithEventService replaces the event service.
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.events = service
	}
}

// WithRegistry replaces the goal record registry.
func WithRegistry(service registry.Service[string, model.GoalRecord]) Option {
	return func(s *Service) {
		s.registry = service
	}
}

// WithPolicy attaches an execution policy to both admission and execution.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) {
		s.serverOptions = append(s.serverOptions, server.WithPolicy(p))
		s.coordinatorOptions = append(s.coordinatorOptions, coordinator.WithPolicy(p))
	}
}

// WithRegistryTTL overrides how long terminal goals stay queryable before the
// sweep evicts them.
func WithRegistryTTL(retention time.Duration) Option {
	return func(s *Service) {
		s.serverOptions = append(s.serverOptions, server.WithRetention(retention))
	}
}

// WithStatusInterval overrides the periodic status broadcast interval.
func WithStatusInterval(interval time.Duration) Option {
	return func(s *Service) {
		s.serverOptions = append(s.serverOptions, server.WithStatusInterval(interval))
	}
}

// WithIdleWait overrides the execution loop's idle poll interval.
func WithIdleWait(interval time.Duration) Option {
	return func(s *Service) {
		s.coordinatorOptions = append(s.coordinatorOptions, coordinator.WithIdleWait(interval))
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile
// is empty the stdout exporter is used; otherwise traces are written to the
// supplied file path. The function is safe to call multiple times – the first
// successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter, enabling integrations beyond the built-in stdout exporter,
// for example OTLP, Jaeger or Zipkin. The function is safe to call multiple
// times – the first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}

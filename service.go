package actionlib

import (
	"context"
	"fmt"
	"time"

	"github.com/molginc/actionlib/client"
	"github.com/molginc/actionlib/extension"
	"github.com/molginc/actionlib/model"
	"github.com/molginc/actionlib/policy"
	"github.com/molginc/actionlib/service/coordinator"
	"github.com/molginc/actionlib/service/event"
	"github.com/molginc/actionlib/service/executor"
	"github.com/molginc/actionlib/service/handler/logger"
	"github.com/molginc/actionlib/service/handler/nop"
	"github.com/molginc/actionlib/service/handler/shell"
	"github.com/molginc/actionlib/service/messaging"
	mfs "github.com/molginc/actionlib/service/messaging/fs"
	mmemory "github.com/molginc/actionlib/service/messaging/memory"
	"github.com/molginc/actionlib/service/multigoal"
	"github.com/molginc/actionlib/service/registry"
	rfs "github.com/molginc/actionlib/service/registry/fs"
	rmemory "github.com/molginc/actionlib/service/registry/memory"
	"github.com/molginc/actionlib/service/server"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/x"
)

// Handle is the goal handle execute callbacks receive; it satisfies the
// coordinator's GoalHandle contract.
type Handle = server.Handle

var _ coordinator.GoalHandle = (*server.Handle)(nil)

type registration struct {
	name      string
	prototype interface{}
	handler   coordinator.ExecuteFunc
}

// Service is the high-level facade. It owns the transport queues, the event
// service, the goal server, the coordinator and the action registry, and
// wires them together so callers deal with goals, not plumbing.
type Service struct {
	config    *Config
	configURL string

	goals    messaging.Queue[model.Goal]
	cancels  messaging.Queue[model.CancelRequest]
	events   *event.Service
	registry registry.Service[string, model.GoalRecord]

	server      *server.Service
	coordinator *coordinator.Service
	actions     *extension.Actions

	extensionTypes []*x.Type
	registrations  []registration

	executeCallback coordinator.ExecuteFunc
	goalCallback    func()
	preemptCallback func()

	serverOptions      []server.Option
	coordinatorOptions []coordinator.Option

	shell *shell.Service
}

func (s *Service) init(ctx context.Context, options []Option) error {
	for _, option := range options {
		option(s)
	}
	if s.configURL != "" {
		config, err := LoadConfig(ctx, s.configURL)
		if err != nil {
			return err
		}
		s.config = config
	}
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if err := s.ensureTransport(ctx); err != nil {
		return err
	}

	var err error
	if s.server, err = server.New(s.goals, s.cancels, s.events, s.registry, s.buildServerOptions()...); err != nil {
		return err
	}
	if s.coordinator, err = coordinator.New(&serverTransport{server: s.server}, s.buildCoordinatorOptions()...); err != nil {
		return err
	}

	s.actions = extension.NewActions(s.extensionTypes...)
	s.registerBuiltins()
	for _, reg := range s.registrations {
		s.actions.Register(reg.name, reg.prototype, reg.handler)
	}

	switch {
	case s.executeCallback != nil:
		s.coordinator.RegisterExecuteCallback(s.executeCallback)
	case s.goalCallback != nil:
		s.coordinator.RegisterGoalCallback(s.goalCallback)
	default:
		s.coordinator.RegisterExecuteCallback(s.dispatch)
	}
	if s.preemptCallback != nil {
		s.coordinator.RegisterPreemptCallback(s.preemptCallback)
	}
	return nil
}

func (s *Service) ensureTransport(ctx context.Context) error {
	vendor := s.config.Messaging.Vendor
	baseURL := s.config.Messaging.BaseURL

	var err error
	if s.goals == nil {
		if s.goals, err = newQueue[model.Goal](ctx, vendor, baseURL, "goals"); err != nil {
			return err
		}
	}
	if s.cancels == nil {
		if s.cancels, err = newQueue[model.CancelRequest](ctx, vendor, baseURL, "cancels"); err != nil {
			return err
		}
	}
	if s.events == nil {
		eventOptions := []event.Option{
			event.WithNewFsQueueConfig(func(name string) mfs.Config {
				config := mfs.DefaultConfig()
				config.BaseURL = url.Join(baseURL, "events", name)
				return config
			}),
		}
		if s.events, err = event.New(vendor, eventOptions...); err != nil {
			return err
		}
	}
	if s.registry == nil {
		switch vendor {
		case messaging.VendorFS:
			if s.registry, err = rfs.New(url.Join(baseURL, "registry")); err != nil {
				return err
			}
		default:
			s.registry = rmemory.New()
		}
	}
	return nil
}

func newQueue[T any](ctx context.Context, vendor messaging.Vendor, baseURL, name string) (messaging.Queue[T], error) {
	switch vendor {
	case messaging.VendorFS:
		config := mfs.DefaultConfig()
		config.BaseURL = url.Join(baseURL, name)
		return mfs.New[T](afs.New(), config)
	case messaging.VendorMemory:
		return mmemory.New[T](mmemory.DefaultConfig()), nil
	default:
		return nil, fmt.Errorf("unsupported messaging vendor: %q", vendor)
	}
}

func (s *Service) buildServerOptions() []server.Option {
	options := make([]server.Option, 0, len(s.serverOptions)+3)
	if s.config.StatusIntervalMs > 0 {
		options = append(options, server.WithStatusInterval(millis(s.config.StatusIntervalMs)))
	}
	if s.config.RetentionMs > 0 {
		options = append(options, server.WithRetention(millis(s.config.RetentionMs)))
	}
	if s.config.Policy != nil {
		options = append(options, server.WithPolicy(policy.FromConfig(s.config.Policy)))
	}
	return append(options, s.serverOptions...)
}

func (s *Service) buildCoordinatorOptions() []coordinator.Option {
	options := make([]coordinator.Option, 0, len(s.coordinatorOptions)+2)
	if s.config.IdleWaitMs > 0 {
		options = append(options, coordinator.WithIdleWait(millis(s.config.IdleWaitMs)))
	}
	if s.config.Policy != nil {
		options = append(options, coordinator.WithPolicy(policy.FromConfig(s.config.Policy)))
	}
	return append(options, s.coordinatorOptions...)
}

func (s *Service) registerBuiltins() {
	s.actions.Register(nop.Name, &nop.Input{}, executor.Typed(nop.New().Execute))
	s.actions.Register(logger.Name, &logger.Input{}, executor.Typed(logger.New().Execute))
	s.shell = shell.New()
	s.actions.Register(shell.Name, &shell.Input{}, executor.Typed(s.shell.Execute))
}

// dispatch is the default execute callback: it routes each accepted goal to
// the handler registered under the goal's action. An unknown action aborts
// just that goal; queued goals keep their eligibility.
func (s *Service) dispatch(ctx context.Context, goal coordinator.GoalHandle) error {
	action := goal.Goal().Action
	handler := s.actions.LookupHandler(action)
	if handler == nil {
		goal.SetAborted(nil, "no handler registered")
		return nil
	}
	return handler(ctx, goal)
}

// Actions exposes the action registry, e.g. to register handlers after
// construction or to resolve goal payload types by name.
func (s *Service) Actions() *extension.Actions {
	return s.actions
}

// Coordinator exposes the admission state machine for callers that need
// coordinator-level operations alongside the facade.
func (s *Service) Coordinator() *coordinator.Service {
	return s.coordinator
}

// Server exposes the goal server, e.g. for status queries.
func (s *Service) Server() *server.Service {
	return s.server
}

// Client returns a client wired to this service's queues and event streams.
func (s *Service) Client() (*client.Client, error) {
	return client.New(s.goals, s.cancels, s.events)
}

// MultiGoal wraps this service's coordinator in the outcome-code convenience
// server. It registers its own execute callback, replacing the default action
// mux, so call it before Start and drive lifecycle through the facade.
func (s *Service) MultiGoal(process multigoal.ProcessFunc) (*multigoal.Server, error) {
	return multigoal.New(s.coordinator, process)
}

// New creates the facade service
func New(options ...Option) (*Service, error) {
	ret := &Service{}
	if err := ret.init(context.Background(), options); err != nil {
		return nil, err
	}
	return ret, nil
}

// serverTransport adapts the goal server to the coordinator's Transport
// contract; handler invocations inherit the server's delivery lock.
type serverTransport struct {
	server *server.Service
}

func (t *serverTransport) RegisterGoalHandler(handler func(coordinator.GoalHandle)) {
	t.server.RegisterGoalHandler(func(h *server.Handle) { handler(h) })
}

func (t *serverTransport) RegisterCancelHandler(handler func(coordinator.GoalHandle)) {
	t.server.RegisterCancelHandler(func(h *server.Handle) { handler(h) })
}

var _ coordinator.Transport = (*serverTransport)(nil)

func millis(value int) time.Duration {
	return time.Duration(value) * time.Millisecond
}

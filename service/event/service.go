package event

import (
	"fmt"
	"github.com/molginc/actionlib/service/messaging"
	"github.com/molginc/actionlib/service/messaging/fs"
	"github.com/molginc/actionlib/service/messaging/memory"
	"github.com/viant/afs"
	"reflect"
	"sync"
)

// Service multiplexes typed event streams over the configured queue
// vendor. Each payload type gets its own queue; every publish is also
// mirrored to a catch-all any stream.
type Service struct {
	publisher         *Publisher[any]
	listener          *Listener[any]
	anyHandler        func(*Event[any])
	typedPublishers   map[reflect.Type]any
	typedListener     map[reflect.Type]any
	typedDispatchers  map[reflect.Type]any
	mux               *sync.RWMutex
	queueVendor       messaging.Vendor
	fsNewQueueConfig  func(name string) fs.Config
	memNewQueueConfig func(name string) memory.Config
}

// SetListener replaces the handler observing the catch-all any stream. The
// stream is drained by a service-owned consumer whether or not a handler is
// attached, so publishers never block on an unobserved mirror.
func (s *Service) SetListener(handler func(*Event[any])) {
	s.mux.Lock()
	s.anyHandler = handler
	s.mux.Unlock()
	return
}

func (s *Service) dispatchAnyEvent(event *Event[any]) {
	s.mux.RLock()
	handler := s.anyHandler
	s.mux.RUnlock()
	if handler != nil {
		handler(event)
	}
}

func New(queueVendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		queueVendor:      queueVendor,
		typedPublishers:  make(map[reflect.Type]any),
		typedListener:    make(map[reflect.Type]any),
		typedDispatchers: make(map[reflect.Type]any),
		mux:              &sync.RWMutex{},
	}
	for _, opt := range opts {
		opt(ret)
	}

	switch queueVendor {
	case messaging.VendorFS:
		if ret.fsNewQueueConfig == nil {
			return nil, fmt.Errorf("fs queue vendor requires fsNewQueueConfig")
		}
	case messaging.VendorMemory:
		if ret.memNewQueueConfig == nil {
			ret.memNewQueueConfig = func(string) memory.Config { return memory.DefaultConfig() }
		}
	default:
		return nil, fmt.Errorf("unsupported queue vendor: %s", queueVendor)
	}

	queue, err := QueueOf[Event[any]](ret, "any")
	if err != nil {
		return nil, err
	}
	ret.publisher = NewPublisher[any](queue)
	ret.listener = NewListener[any](ret.publisher, ret.dispatchAnyEvent)
	ret.listener.Start()
	return ret, nil
}

// Shutdown stops the any-stream listener, every typed listener and
// every dispatcher; dispatcher subscription channels are closed.
func (s *Service) Shutdown() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.listener != nil {
		s.listener.Stop()
		s.listener = nil
	}
	for key, value := range s.typedListener {
		if stopper, ok := value.(interface{ Stop() }); ok {
			stopper.Stop()
		}
		delete(s.typedListener, key)
	}
	for key, value := range s.typedDispatchers {
		if stopper, ok := value.(interface{ Stop() }); ok {
			stopper.Stop()
		}
		delete(s.typedDispatchers, key)
	}
}

func QueueOf[T any](s *Service, name string) (messaging.Queue[T], error) {
	switch s.queueVendor {
	case messaging.VendorFS:
		return fs.New[T](afs.New(), s.fsNewQueueConfig(name))
	case messaging.VendorMemory:
		return memory.New[T](s.memNewQueueConfig(name)), nil
	}
	return nil, fmt.Errorf("unsupported queue vendor: %s", s.queueVendor)
}

func keyOf[T any]() reflect.Type {
	var t T
	rType := reflect.TypeOf(t)
	if rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	return rType
}

// SetListenerOf replaces the single handler draining events of type T.
// For fan-out to multiple consumers use SubscribeOf instead; mixing
// both for the same type splits the stream between them.
func SetListenerOf[T any](s *Service, handler func(*Event[T])) error {
	key := keyOf[T]()
	s.mux.RLock()
	ret, ok := s.typedListener[key]
	s.mux.RUnlock()
	if ok {
		ret.(*Listener[T]).Stop()
	}
	publisher, err := PublisherOf[T](s)
	if err != nil {
		return err
	}
	listener := NewListener[T](publisher, handler)
	s.mux.Lock()
	s.typedListener[key] = listener
	listener.Start()
	s.mux.Unlock()
	return nil
}

// PublisherOf returns a publisher for the provided type
func PublisherOf[T any](s *Service) (*Publisher[T], error) {
	key := keyOf[T]()
	s.mux.RLock()
	ret, ok := s.typedPublishers[key]
	s.mux.RUnlock()
	if !ok {
		queue, err := QueueOf[Event[T]](s, key.String())
		if err != nil {
			return nil, err
		}
		publisher := NewPublisher[T](queue)
		publisher.anyQueue = s.publisher.queue
		s.mux.Lock()
		s.typedPublishers[key] = publisher
		s.mux.Unlock()
		return publisher, nil
	}
	return ret.(*Publisher[T]), nil
}

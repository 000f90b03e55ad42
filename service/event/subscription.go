package event

import (
	"sync"
	"sync/atomic"
)

// Subscription delivers events of one type on a buffered channel.
// A slow subscriber never blocks publishers; events that would
// overflow the buffer are dropped and counted.
type Subscription[T any] struct {
	events  chan *Event[T]
	dropped int64
	cancel  func()
	once    sync.Once
}

// Events returns the delivery channel; it is closed when the
// subscription or the owning service shuts down.
func (s *Subscription[T]) Events() <-chan *Event[T] {
	return s.events
}

// Dropped reports how many events were discarded because the buffer was
// full.
func (s *Subscription[T]) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

// Close detaches the subscription from its dispatcher.
func (s *Subscription[T]) Close() {
	s.once.Do(s.cancel)
}

// dispatcher fans one typed listener out to any number of
// subscriptions. Sends and channel closes are serialized by mux so a
// subscription channel is never written after it closes.
type dispatcher[T any] struct {
	mux      sync.RWMutex
	listener *Listener[T]
	subs     map[int]*Subscription[T]
	seq      int
}

func (d *dispatcher[T]) dispatch(event *Event[T]) {
	d.mux.RLock()
	defer d.mux.RUnlock()
	for _, sub := range d.subs {
		select {
		case sub.events <- event:
		default:
			atomic.AddInt64(&sub.dropped, 1)
		}
	}
}

func (d *dispatcher[T]) add(sub *Subscription[T]) int {
	d.mux.Lock()
	defer d.mux.Unlock()
	d.seq++
	d.subs[d.seq] = sub
	return d.seq
}

func (d *dispatcher[T]) remove(id int) {
	d.mux.Lock()
	defer d.mux.Unlock()
	sub, ok := d.subs[id]
	if !ok {
		return
	}
	delete(d.subs, id)
	close(sub.events)
}

func (d *dispatcher[T]) Stop() {
	d.listener.Stop()
	d.mux.Lock()
	defer d.mux.Unlock()
	for id, sub := range d.subs {
		delete(d.subs, id)
		close(sub.events)
	}
}

// DrainOf starts the fan-out consumer for events of type T without
// attaching a subscription, so publishers of T never block even when
// nobody is listening yet.
func DrainOf[T any](s *Service) error {
	_, err := dispatcherOf[T](s)
	return err
}

// SubscribeOf registers a subscription for events of type T with the
// given channel buffer (64 when non-positive). The first subscription
// for a type starts its consuming listener.
func SubscribeOf[T any](s *Service, buffer int) (*Subscription[T], error) {
	if buffer <= 0 {
		buffer = 64
	}
	d, err := dispatcherOf[T](s)
	if err != nil {
		return nil, err
	}
	sub := &Subscription[T]{events: make(chan *Event[T], buffer)}
	id := d.add(sub)
	sub.cancel = func() { d.remove(id) }
	return sub, nil
}

func dispatcherOf[T any](s *Service) (*dispatcher[T], error) {
	key := keyOf[T]()
	s.mux.RLock()
	ret, ok := s.typedDispatchers[key]
	s.mux.RUnlock()
	if ok {
		return ret.(*dispatcher[T]), nil
	}
	publisher, err := PublisherOf[T](s)
	if err != nil {
		return nil, err
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if existing, ok := s.typedDispatchers[key]; ok {
		return existing.(*dispatcher[T]), nil
	}
	d := &dispatcher[T]{subs: make(map[int]*Subscription[T])}
	d.listener = NewListener[T](publisher, d.dispatch)
	d.listener.Start()
	s.typedDispatchers[key] = d
	return d, nil
}

package extension

import (
	"reflect"
	"sort"
	"sync"

	"github.com/molginc/actionlib/service/coordinator"
	"github.com/viant/x"
)

// Actions couples every action name with its execute callback and its goal
// payload prototype.
type Actions struct {
	types    *Types
	handlers map[string]coordinator.ExecuteFunc
	mux      sync.RWMutex
}

func (s *Actions) Types() *Types {
	return s.types
}

// Register binds an action name to a goal payload prototype and an execute
// callback. A nil prototype registers the handler without a payload type.
func (s *Actions) Register(name string, prototype interface{}, handler coordinator.ExecuteFunc) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if prototype != nil {
		rType := reflect.TypeOf(prototype)
		if rType.Kind() == reflect.Ptr {
			rType = rType.Elem()
		}
		s.types.Register(x.NewType(rType, x.WithName(name)))
	}
	s.handlers[name] = handler
}

// LookupHandler returns the execute callback registered under name, or nil.
func (s *Actions) LookupHandler(name string) coordinator.ExecuteFunc {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.handlers[name]
}

// LookupGoalType resolves the payload type registered under name, or nil.
func (s *Actions) LookupGoalType(name string) reflect.Type {
	if aType := s.types.Lookup(name); aType != nil {
		return aType.Type
	}
	return nil
}

// Names returns the registered action names in lexical order.
func (s *Actions) Names() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewActions creates a new action registry
func NewActions(goTypes ...*x.Type) *Actions {
	ret := &Actions{
		types:    NewTypes(),
		handlers: make(map[string]coordinator.ExecuteFunc),
	}
	for _, t := range goTypes {
		if t != nil {
			ret.types.Register(t)
		}
	}
	return ret
}

package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/molginc/actionlib/service/coordinator"
	"github.com/viant/structology/conv"
)

// Listener is invoked once a typed handler returns (regardless of whether it
// returned an error or not). Implementations can log, collect metrics or
// perform any other side-effects they require.
//
// For convenience the listener is defined as a function type rather than an
// interface; users can therefore pass a plain function literal when
// customising the adapter.
type Listener func(goal coordinator.GoalHandle, input interface{}, err error)

// StdoutListener serialises the goal and the converted input into JSON and
// prints them to standard output. Errors from json.Marshal are ignored on
// purpose – they indicate non-serialisable values and the caller would not
// have had access to the data either way.
func StdoutListener(goal coordinator.GoalHandle, input interface{}, err error) {
	if goal == nil {
		return
	}
	g, _ := json.Marshal(goal.Goal())
	fmt.Println(string(g))
	if input != nil {
		in, _ := json.Marshal(input)
		fmt.Println(string(in))
	}
	if err != nil {
		fmt.Println(err.Error())
	}
}

// Option is used to customise the typed adapter.
type Option func(*settings)

type settings struct {
	listener  Listener
	converter *conv.Converter
}

// WithListener installs a listener invoked after every handler run. Passing
// nil disables the callback entirely.
func WithListener(l Listener) Option {
	return func(s *settings) {
		s.listener = l
	}
}

// WithConverter overrides the payload converter.
func WithConverter(c *conv.Converter) Option {
	return func(s *settings) {
		if c != nil {
			s.converter = c
		}
	}
}

func newConverter() *conv.Converter {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	options.AccessUnexported = true
	return conv.NewConverter(options)
}

// Typed adapts a strongly typed handler into an execute callback: the goal's
// opaque payload is converted into a fresh *I before fn runs. A payload that
// does not convert fails the callback, so the execution loop aborts the goal
// with the conversion diagnostic.
func Typed[I any](fn func(ctx context.Context, input *I, goal coordinator.GoalHandle) error, options ...Option) coordinator.ExecuteFunc {
	s := &settings{converter: newConverter()}
	for _, opt := range options {
		opt(s)
	}
	return func(ctx context.Context, goal coordinator.GoalHandle) error {
		input := new(I)
		if payload := goal.Goal().Payload; payload != nil {
			if err := s.converter.Convert(payload, input); err != nil {
				return fmt.Errorf("%w: %v", ErrPayloadConversion, err)
			}
		}
		err := fn(ctx, input, goal)
		if s.listener != nil {
			s.listener(goal, input, err)
		}
		return err
	}
}

package event

import "time"

// Event kinds used in Context.EventType.
const (
	TypeStatus   = "status"
	TypeFeedback = "feedback"
	TypeResult   = "result"
)

// Context identifies the goal an event belongs to so consumers can
// correlate streams without inspecting the payload.
type Context struct {
	GoalID    string `json:"goalID"`
	Action    string `json:"action"`
	EventType string `json:"eventType"`
	Source    string `json:"source"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}

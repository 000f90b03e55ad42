package logger

import (
	"context"
	"encoding/json"
	"log"

	"github.com/molginc/actionlib/service/coordinator"
)

// Name is the action this handler registers under.
const Name = "logger"

// Service writes every goal payload to the process log and succeeds.
type Service struct{}

// Input is the logged payload.
type Input struct {
	Message string      `json:"message,omitempty" yaml:"message,omitempty"`
	Data    interface{} `json:"data,omitempty" yaml:"data,omitempty"`
}

// Output echoes the rendered log line.
type Output struct {
	Logged string `json:"logged,omitempty" yaml:"logged,omitempty"`
}

// New creates a new logger service
func New() *Service {
	return &Service{}
}

// Name returns the handler name
func (s *Service) Name() string {
	return Name
}

// Execute renders the payload, logs it and succeeds. Data that does not
// marshal is skipped rather than failing the goal.
func (s *Service) Execute(ctx context.Context, input *Input, goal coordinator.GoalHandle) error {
	line := input.Message
	if input.Data != nil {
		if data, err := json.Marshal(input.Data); err == nil {
			if line != "" {
				line += " "
			}
			line += string(data)
		}
	}
	log.Printf("goal %s: %s", goal.ID(), line)
	goal.SetSucceeded(&Output{Logged: line}, "message logged")
	return nil
}

package nop

import (
	"context"
	"testing"
	"time"

	"github.com/molginc/actionlib/model"
	"github.com/molginc/actionlib/service/coordinator"
	"github.com/stretchr/testify/assert"
)

type goalStub struct {
	status model.Status
	text   string
	result interface{}
}

func (g *goalStub) ID() string           { return "goal-1" }
func (g *goalStub) Stamp() time.Time     { return time.Time{} }
func (g *goalStub) Goal() model.Goal     { return model.Goal{Action: Name} }
func (g *goalStub) Status() model.Status { return g.status }

func (g *goalStub) SetAccepted(text string) { g.status = model.StatusActive }
func (g *goalStub) SetSucceeded(result interface{}, text string) {
	g.status, g.result, g.text = model.StatusSucceeded, result, text
}
func (g *goalStub) SetAborted(result interface{}, text string) {
	g.status, g.result, g.text = model.StatusAborted, result, text
}
func (g *goalStub) SetCanceled(result interface{}, text string) {
	g.status, g.result, g.text = model.StatusPreempted, result, text
}
func (g *goalStub) SetRecalled(result interface{}, text string) {}
func (g *goalStub) SetRejected(result interface{}, text string) {}
func (g *goalStub) PublishFeedback(payload interface{})         {}

var _ coordinator.GoalHandle = (*goalStub)(nil)

func TestService_Execute(t *testing.T) {
	service := New()
	goal := &goalStub{status: model.StatusActive}

	err := service.Execute(context.Background(), &Input{}, goal)

	assert.NoError(t, err)
	assert.Equal(t, model.StatusSucceeded, goal.status)
	assert.Equal(t, "no operation", goal.text)
	assert.Nil(t, goal.result)
}

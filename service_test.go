package actionlib_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/molginc/actionlib"
	"github.com/molginc/actionlib/client"
	"github.com/molginc/actionlib/model"
	"github.com/molginc/actionlib/policy"
	"github.com/molginc/actionlib/service/coordinator"
	"github.com/molginc/actionlib/service/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fibonacciInput struct {
	Order int `json:"order" yaml:"order"`
}

func newTestService(t *testing.T, options ...actionlib.Option) *actionlib.Service {
	t.Helper()
	options = append([]actionlib.Option{
		actionlib.WithIdleWait(10 * time.Millisecond),
		actionlib.WithStatusInterval(25 * time.Millisecond),
	}, options...)
	service, err := actionlib.New(options...)
	require.NoError(t, err)
	require.NoError(t, service.Start(context.Background()))
	t.Cleanup(service.Shutdown)
	return service
}

func newTestClient(t *testing.T, service *actionlib.Service) *client.Client {
	t.Helper()
	cli, err := service.Client()
	require.NoError(t, err)
	t.Cleanup(cli.Close)
	return cli
}

func waitForStatus(t *testing.T, goal *client.ClientGoal, expected model.Status) {
	t.Helper()
	for i := 0; i < 300; i++ {
		if goal.Status() == expected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("goal %s never reached %s, last status %s", goal.ID(), expected, goal.Status())
}

func TestService_TypedHandlerEndToEnd(t *testing.T) {
	handler := executor.Typed(func(ctx context.Context, input *fibonacciInput, goal coordinator.GoalHandle) error {
		sequence := []int{0, 1}
		for i := 2; i <= input.Order; i++ {
			sequence = append(sequence, sequence[i-1]+sequence[i-2])
			goal.PublishFeedback(sequence[i])
		}
		goal.SetSucceeded(sequence, "sequence computed")
		return nil
	})
	service := newTestService(t, actionlib.WithHandler("fibonacci", &fibonacciInput{}, handler))
	cli := newTestClient(t, service)

	var activated, feedbackCount int32
	goal, err := cli.SendGoal(context.Background(), "fibonacci", map[string]interface{}{"order": 6},
		client.WithOnActive(func() { atomic.AddInt32(&activated, 1) }),
		client.WithOnFeedback(func(model.Feedback) { atomic.AddInt32(&feedbackCount, 1) }),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	result, err := goal.WaitForResult(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.StatusSucceeded, result.Status)
	assert.Equal(t, "sequence computed", result.Text)
	assert.Equal(t, []int{0, 1, 1, 2, 3, 5, 8}, result.Payload)
	assert.EqualValues(t, 1, atomic.LoadInt32(&activated))

	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 5, atomic.LoadInt32(&feedbackCount))

	record, err := service.Status(ctx, goal.ID())
	require.NoError(t, err)
	assert.Equal(t, model.StatusSucceeded, record.Status)
}

func TestService_BuiltinNop(t *testing.T) {
	service := newTestService(t)
	cli := newTestClient(t, service)

	goal, err := cli.SendGoal(context.Background(), "nop", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	result, err := goal.WaitForResult(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.StatusSucceeded, result.Status)
	assert.Equal(t, "no operation", result.Text)
}

func TestService_UnknownActionAborts(t *testing.T) {
	service := newTestService(t)
	cli := newTestClient(t, service)

	goal, err := cli.SendGoal(context.Background(), "teleport", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	result, err := goal.WaitForResult(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.StatusAborted, result.Status)
	assert.Equal(t, "no handler registered", result.Text)
}

func TestService_NewerGoalSupersedes(t *testing.T) {
	releases := make(chan struct{}, 2)
	handler := func(ctx context.Context, goal coordinator.GoalHandle) error {
		coord := coordinator.FromContext(ctx)
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			if coord.IsPreemptRequested() {
				goal.SetCanceled(nil, "yielding to a newer goal")
				return nil
			}
			select {
			case <-releases:
				goal.SetSucceeded(nil, "ran to completion")
				return nil
			default:
			}
			time.Sleep(5 * time.Millisecond)
		}
		goal.SetAborted(nil, "never released")
		return nil
	}
	service := newTestService(t, actionlib.WithExecuteCallback(handler))
	cli := newTestClient(t, service)

	first, err := cli.SendGoal(context.Background(), "work", nil)
	require.NoError(t, err)
	waitForStatus(t, first, model.StatusActive)

	second, err := cli.SendGoal(context.Background(), "work", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	firstResult, err := first.WaitForResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPreempted, firstResult.Status)
	assert.Equal(t, "yielding to a newer goal", firstResult.Text)

	releases <- struct{}{}
	secondResult, err := second.WaitForResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSucceeded, secondResult.Status)
	assert.Equal(t, "ran to completion", secondResult.Text)
}

func TestService_ClientCancel(t *testing.T) {
	handler := func(ctx context.Context, goal coordinator.GoalHandle) error {
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			if goal.Status() == model.StatusPreempting {
				goal.SetCanceled(nil, "canceled on request")
				return nil
			}
			time.Sleep(5 * time.Millisecond)
		}
		goal.SetAborted(nil, "cancel never arrived")
		return nil
	}
	service := newTestService(t, actionlib.WithExecuteCallback(handler))
	cli := newTestClient(t, service)

	goal, err := cli.SendGoal(context.Background(), "work", nil)
	require.NoError(t, err)
	waitForStatus(t, goal, model.StatusActive)
	require.NoError(t, goal.Cancel(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := goal.WaitForResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPreempted, result.Status)
	assert.Equal(t, "canceled on request", result.Text)
}

func TestService_PolicyBlocksAction(t *testing.T) {
	service := newTestService(t, actionlib.WithPolicy(&policy.Policy{BlockList: []string{"shell"}}))
	cli := newTestClient(t, service)

	goal, err := cli.SendGoal(context.Background(), "shell", map[string]interface{}{"commands": []string{"ls"}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	result, err := goal.WaitForResult(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.StatusRejected, result.Status)
	assert.Equal(t, "action blocked by policy", result.Text)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := actionlib.New(actionlib.WithConfig(&actionlib.Config{
		Messaging: actionlib.MessagingConfig{Vendor: "kafka"},
	}))
	assert.Error(t, err)
}

func TestService_MultiGoal(t *testing.T) {
	service, err := actionlib.New(actionlib.WithIdleWait(10 * time.Millisecond))
	require.NoError(t, err)

	multi, err := service.MultiGoal(func(ctx context.Context, goal coordinator.GoalHandle) model.Status {
		return model.StatusSucceeded
	})
	require.NoError(t, err)
	require.NoError(t, service.Start(context.Background()))
	t.Cleanup(service.Shutdown)

	cli := newTestClient(t, service)
	goal, err := cli.SendGoal(context.Background(), "work", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	result, err := goal.WaitForResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSucceeded, result.Status)
	assert.Equal(t, "goal execution succeeded", result.Text)
	assert.False(t, multi.IsActive())
}

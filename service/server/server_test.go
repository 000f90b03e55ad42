package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/molginc/actionlib/model"
	"github.com/molginc/actionlib/policy"
	"github.com/molginc/actionlib/service/event"
	"github.com/molginc/actionlib/service/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handleRecorder collects the handles a registered handler was invoked with.
type handleRecorder struct {
	mu      sync.Mutex
	handles []*Handle
}

func (r *handleRecorder) record(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = append(r.handles, h)
}

func (r *handleRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

func (r *handleRecorder) last() *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.handles) == 0 {
		return nil
	}
	return r.handles[len(r.handles)-1]
}

func (r *handleRecorder) all() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Handle(nil), r.handles...)
}

func TestServer_IngestGoal(t *testing.T) {
	service, goals, _, events := newTestServer(t)
	defer events.Shutdown()
	recorder := &handleRecorder{}
	service.RegisterGoalHandler(recorder.record)
	require.NoError(t, service.Start(context.Background()))
	defer service.Shutdown()

	goal := model.NewGoal("fibonacci", map[string]interface{}{"order": 5})
	require.NoError(t, goals.Publish(context.Background(), goal))
	time.Sleep(200 * time.Millisecond)

	require.Equal(t, 1, recorder.count())
	handle := recorder.last()
	assert.NotEmpty(t, handle.ID())
	assert.False(t, handle.Stamp().IsZero())
	assert.Equal(t, model.StatusPending, handle.Status())

	record, err := service.Status(context.Background(), handle.ID())
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, record.Status)
	assert.Equal(t, "fibonacci", record.Action)
}

func TestServer_DuplicateGoalIgnored(t *testing.T) {
	service, goals, _, events := newTestServer(t)
	defer events.Shutdown()
	recorder := &handleRecorder{}
	service.RegisterGoalHandler(recorder.record)
	require.NoError(t, service.Start(context.Background()))
	defer service.Shutdown()

	goal := &model.Goal{ID: model.GoalID{ID: "goal-1", Stamp: time.Now()}, Action: "test"}
	require.NoError(t, goals.Publish(context.Background(), goal))
	require.NoError(t, goals.Publish(context.Background(), goal))
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, 1, recorder.count())
}

func TestServer_CancelRequest(t *testing.T) {
	service, goals, cancels, events := newTestServer(t)
	defer events.Shutdown()
	goalRecorder := &handleRecorder{}
	cancelRecorder := &handleRecorder{}
	service.RegisterGoalHandler(goalRecorder.record)
	service.RegisterCancelHandler(cancelRecorder.record)
	require.NoError(t, service.Start(context.Background()))
	defer service.Shutdown()

	require.NoError(t, goals.Publish(context.Background(), &model.Goal{
		ID:     model.GoalID{ID: "goal-1", Stamp: time.Now()},
		Action: "test",
	}))
	time.Sleep(200 * time.Millisecond)
	handle := goalRecorder.last()
	require.NotNil(t, handle)
	handle.SetAccepted("goal accepted")

	require.NoError(t, cancels.Publish(context.Background(), &model.CancelRequest{ID: "goal-1"}))
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, model.StatusPreempting, handle.Status())
	assert.Equal(t, 1, cancelRecorder.count())
	assert.Same(t, handle, cancelRecorder.last())

	// unknown target is a logged no-op
	require.NoError(t, cancels.Publish(context.Background(), &model.CancelRequest{ID: "goal-x"}))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, cancelRecorder.count())
}

func TestServer_CancelBeforeStamp(t *testing.T) {
	service, goals, cancels, events := newTestServer(t)
	defer events.Shutdown()
	recorder := &handleRecorder{}
	service.RegisterGoalHandler(recorder.record)
	require.NoError(t, service.Start(context.Background()))
	defer service.Shutdown()

	base := time.Now()
	require.NoError(t, goals.Publish(context.Background(), &model.Goal{
		ID: model.GoalID{ID: "goal-old", Stamp: base}, Action: "test",
	}))
	require.NoError(t, goals.Publish(context.Background(), &model.Goal{
		ID: model.GoalID{ID: "goal-new", Stamp: base.Add(time.Minute)}, Action: "test",
	}))
	time.Sleep(200 * time.Millisecond)
	handles := recorder.all()
	require.Len(t, handles, 2)
	for _, handle := range handles {
		handle.SetAccepted("goal accepted")
	}

	// an id-less request cancels every goal stamped at or before At
	require.NoError(t, cancels.Publish(context.Background(), &model.CancelRequest{At: base.Add(time.Second)}))
	time.Sleep(200 * time.Millisecond)

	statuses := map[string]model.Status{}
	for _, handle := range handles {
		statuses[handle.ID()] = handle.Status()
	}
	assert.Equal(t, model.StatusPreempting, statuses["goal-old"])
	assert.Equal(t, model.StatusActive, statuses["goal-new"])

	// no At and no id cancels everything still live
	require.NoError(t, cancels.Publish(context.Background(), &model.CancelRequest{}))
	time.Sleep(200 * time.Millisecond)
	for _, handle := range handles {
		assert.Equal(t, model.StatusPreempting, handle.Status())
	}
}

func TestServer_PolicyRejectsAtIngest(t *testing.T) {
	service, goals, _, events := newTestServer(t, WithPolicy(&policy.Policy{
		Mode:      policy.ModeAuto,
		BlockList: []string{"forbidden"},
	}))
	defer events.Shutdown()
	recorder := &handleRecorder{}
	service.RegisterGoalHandler(recorder.record)
	require.NoError(t, service.Start(context.Background()))
	defer service.Shutdown()

	require.NoError(t, goals.Publish(context.Background(), &model.Goal{
		ID: model.GoalID{ID: "goal-1", Stamp: time.Now()}, Action: "forbidden",
	}))
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, 0, recorder.count())
	record, err := service.Status(context.Background(), "goal-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, record.Status)
	assert.Equal(t, "action blocked by policy", record.Text)
}

func TestServer_StatusQueries(t *testing.T) {
	service, goals, _, events := newTestServer(t)
	defer events.Shutdown()
	recorder := &handleRecorder{}
	service.RegisterGoalHandler(recorder.record)
	require.NoError(t, service.Start(context.Background()))
	defer service.Shutdown()

	require.NoError(t, goals.Publish(context.Background(), &model.Goal{
		ID: model.GoalID{ID: "goal-1", Stamp: time.Now()}, Action: "test",
	}))
	require.NoError(t, goals.Publish(context.Background(), &model.Goal{
		ID: model.GoalID{ID: "goal-2", Stamp: time.Now()}, Action: "test",
	}))
	time.Sleep(200 * time.Millisecond)
	handles := recorder.all()
	require.Len(t, handles, 2)

	first := handles[0]
	first.SetAccepted("goal accepted")
	first.SetSucceeded(nil, "done")

	succeeded, err := service.Statuses(context.Background(), registry.NewParameter("Status", string(model.StatusSucceeded)))
	require.NoError(t, err)
	require.Len(t, succeeded, 1)
	assert.Equal(t, first.ID(), succeeded[0].ID)

	all, err := service.Statuses(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestServer_SweepEvictsTerminalRecords(t *testing.T) {
	service, goals, _, events := newTestServer(t,
		WithStatusInterval(25*time.Millisecond),
		WithRetention(50*time.Millisecond))
	defer events.Shutdown()
	recorder := &handleRecorder{}
	service.RegisterGoalHandler(recorder.record)
	require.NoError(t, service.Start(context.Background()))
	defer service.Shutdown()

	require.NoError(t, goals.Publish(context.Background(), &model.Goal{
		ID: model.GoalID{ID: "goal-1", Stamp: time.Now()}, Action: "test",
	}))
	time.Sleep(100 * time.Millisecond)
	handle := recorder.last()
	require.NotNil(t, handle)
	handle.SetAccepted("goal accepted")
	handle.SetSucceeded(nil, "done")

	record, err := service.Status(context.Background(), "goal-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSucceeded, record.Status)

	time.Sleep(300 * time.Millisecond)
	_, err = service.Status(context.Background(), "goal-1")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestServer_PeriodicStatusBroadcast(t *testing.T) {
	service, goals, _, events := newTestServer(t, WithStatusInterval(50*time.Millisecond))
	defer events.Shutdown()
	statuses, err := event.SubscribeOf[model.StatusUpdate](events, 64)
	require.NoError(t, err)
	defer statuses.Close()

	recorder := &handleRecorder{}
	service.RegisterGoalHandler(recorder.record)
	require.NoError(t, service.Start(context.Background()))
	defer service.Shutdown()

	require.NoError(t, goals.Publish(context.Background(), &model.Goal{
		ID: model.GoalID{ID: "goal-1", Stamp: time.Now()}, Action: "test",
	}))
	time.Sleep(400 * time.Millisecond)

	var pending int
	for {
		select {
		case evt := <-statuses.Events():
			if evt.Data.Status == model.StatusPending {
				pending++
			}
			continue
		default:
		}
		break
	}
	// the initial announcement plus periodic rebroadcasts
	assert.Greater(t, pending, 2)
}

func TestServer_Lifecycle(t *testing.T) {
	service, _, _, events := newTestServer(t)
	defer events.Shutdown()

	assert.NotPanics(t, func() { service.Shutdown() })

	service2, _, _, events2 := newTestServer(t)
	defer events2.Shutdown()
	service2.RegisterGoalHandler(func(*Handle) {})
	require.NoError(t, service2.Start(context.Background()))
	assert.Error(t, service2.Start(context.Background()))
	service2.Shutdown()
}

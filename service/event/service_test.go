package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/molginc/actionlib/model"
	"github.com/molginc/actionlib/service/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mux    sync.Mutex
	events []*Event[model.StatusUpdate]
}

func (c *collector) collect(event *Event[model.StatusUpdate]) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.events = append(c.events, event)
}

func (c *collector) snapshot() []*Event[model.StatusUpdate] {
	c.mux.Lock()
	defer c.mux.Unlock()
	return append([]*Event[model.StatusUpdate]{}, c.events...)
}

func TestService_TypedListener(t *testing.T) {
	service, err := New(messaging.VendorMemory)
	require.NoError(t, err)
	defer service.Shutdown()

	received := &collector{}
	err = SetListenerOf[model.StatusUpdate](service, received.collect)
	require.NoError(t, err)

	publisher, err := PublisherOf[model.StatusUpdate](service)
	require.NoError(t, err)

	ctx := context.Background()
	for _, status := range []model.Status{model.StatusPending, model.StatusActive, model.StatusSucceeded} {
		update := model.StatusUpdate{Goal: model.GoalID{ID: "goal-1"}, Status: status}
		err = publisher.Publish(ctx, NewEvent(&Context{GoalID: "goal-1", EventType: TypeStatus}, update))
		require.NoError(t, err)
	}

	time.Sleep(100 * time.Millisecond)

	events := received.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, model.StatusPending, events[0].Data.Status)
	assert.Equal(t, model.StatusActive, events[1].Data.Status)
	assert.Equal(t, model.StatusSucceeded, events[2].Data.Status)
	assert.Equal(t, "goal-1", events[0].Context.GoalID)
	assert.False(t, events[0].CreatedAt.IsZero())
}

func TestService_Subscriptions(t *testing.T) {
	service, err := New(messaging.VendorMemory)
	require.NoError(t, err)
	defer service.Shutdown()

	first, err := SubscribeOf[model.Result](service, 8)
	require.NoError(t, err)
	second, err := SubscribeOf[model.Result](service, 8)
	require.NoError(t, err)

	publisher, err := PublisherOf[model.Result](service)
	require.NoError(t, err)

	ctx := context.Background()
	result := model.Result{Goal: model.GoalID{ID: "goal-2"}, Status: model.StatusSucceeded}
	err = publisher.Publish(ctx, NewEvent(&Context{GoalID: "goal-2", EventType: TypeResult}, result))
	require.NoError(t, err)

	for _, sub := range []*Subscription[model.Result]{first, second} {
		select {
		case event := <-sub.Events():
			assert.Equal(t, "goal-2", event.Data.Goal.ID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for result event")
		}
	}

	second.Close()
	err = publisher.Publish(ctx, NewEvent(&Context{GoalID: "goal-2", EventType: TypeResult}, result))
	require.NoError(t, err)

	select {
	case event := <-first.Events():
		require.NotNil(t, event)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result event")
	}
	time.Sleep(50 * time.Millisecond)
	_, open := <-second.Events()
	assert.False(t, open)
}

func TestService_AnyStream(t *testing.T) {
	service, err := New(messaging.VendorMemory)
	require.NoError(t, err)
	defer service.Shutdown()

	var mux sync.Mutex
	var kinds []string
	service.SetListener(func(event *Event[any]) {
		mux.Lock()
		defer mux.Unlock()
		kinds = append(kinds, event.Context.EventType)
	})

	feedbackPublisher, err := PublisherOf[model.Feedback](service)
	require.NoError(t, err)
	resultPublisher, err := PublisherOf[model.Result](service)
	require.NoError(t, err)

	ctx := context.Background()
	feedback := model.Feedback{Goal: model.GoalID{ID: "goal-3"}}
	require.NoError(t, feedbackPublisher.Publish(ctx, NewEvent(&Context{EventType: TypeFeedback}, feedback)))
	result := model.Result{Goal: model.GoalID{ID: "goal-3"}, Status: model.StatusAborted}
	require.NoError(t, resultPublisher.Publish(ctx, NewEvent(&Context{EventType: TypeResult}, result)))

	time.Sleep(100 * time.Millisecond)

	mux.Lock()
	defer mux.Unlock()
	assert.Len(t, kinds, 2)
	assert.Contains(t, kinds, TypeFeedback)
	assert.Contains(t, kinds, TypeResult)
}

func TestNew_UnsupportedVendor(t *testing.T) {
	_, err := New(messaging.Vendor("kafka"))
	assert.Error(t, err)
}

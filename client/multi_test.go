package client

import (
	"context"
	"testing"
	"time"

	"github.com/molginc/actionlib/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulti_LatestGoalOps(t *testing.T) {
	client, _, _, events := newTestClient(t)
	multi, err := NewMulti(client)
	require.NoError(t, err)

	first, err := multi.SendGoal(context.Background(), "fibonacci", map[string]interface{}{"order": 3})
	require.NoError(t, err)
	second, err := multi.SendGoal(context.Background(), "fibonacci", map[string]interface{}{"order": 8})
	require.NoError(t, err)

	assert.Equal(t, 2, multi.NumGoals())
	assert.Equal(t, second.ID(), multi.GoalID())
	assert.Equal(t, model.StatusPending, multi.GoalState())

	// no result yet: nothing to pop
	_, ok := multi.Result()
	assert.False(t, ok)
	assert.Equal(t, 2, multi.NumGoals())

	publishResult(t, events, second.GoalID(), model.StatusSucceeded, 21, "done")
	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = multi.WaitForResult(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSucceeded, multi.GoalState())
	assert.Equal(t, "done", multi.StatusText())

	// popping the result stops tracking that goal
	result, ok := multi.Result()
	require.True(t, ok)
	assert.Equal(t, 21, result.Payload)
	assert.Equal(t, 1, multi.NumGoals())
	assert.Equal(t, first.ID(), multi.GoalID())
}

func TestMulti_RemoveDone(t *testing.T) {
	client, _, _, events := newTestClient(t)
	multi, err := NewMulti(client)
	require.NoError(t, err)

	var goals []*ClientGoal
	for i := 0; i < 3; i++ {
		goal, err := multi.SendGoal(context.Background(), "fibonacci", nil)
		require.NoError(t, err)
		goals = append(goals, goal)
	}

	publishResult(t, events, goals[0].GoalID(), model.StatusSucceeded, nil, "done")
	publishResult(t, events, goals[1].GoalID(), model.StatusAborted, nil, "failed")
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, 2, multi.RemoveDone())
	assert.Equal(t, 1, multi.NumGoals())
	assert.Equal(t, goals[2].ID(), multi.GoalID())
}

func TestMulti_CancelAll(t *testing.T) {
	client, _, cancels, events := newTestClient(t)
	multi, err := NewMulti(client)
	require.NoError(t, err)

	var goals []*ClientGoal
	for i := 0; i < 3; i++ {
		goal, err := multi.SendGoal(context.Background(), "fibonacci", nil)
		require.NoError(t, err)
		goals = append(goals, goal)
	}
	publishResult(t, events, goals[2].GoalID(), model.StatusSucceeded, nil, "done")
	time.Sleep(150 * time.Millisecond)

	require.NoError(t, multi.CancelAll(context.Background()))

	canceled := map[string]bool{}
	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		msg, err := cancels.Consume(ctx)
		cancel()
		require.NoError(t, err)
		canceled[msg.T().ID] = true
	}
	assert.True(t, canceled[goals[0].ID()])
	assert.True(t, canceled[goals[1].ID()])
}

func TestMulti_NoGoals(t *testing.T) {
	client, _, _, _ := newTestClient(t)
	multi, err := NewMulti(client)
	require.NoError(t, err)

	assert.Equal(t, "", multi.GoalID())
	assert.Equal(t, model.Status(""), multi.GoalState())
	_, err = multi.WaitForResult(context.Background())
	assert.Error(t, err)
	assert.Same(t, client, multi.Client())
}

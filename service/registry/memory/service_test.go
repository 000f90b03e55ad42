package memory

import (
	"context"
	"testing"
	"time"

	"github.com/molginc/actionlib/model"
	"github.com/molginc/actionlib/service/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_CRUD(t *testing.T) {
	service := New()
	ctx := context.Background()

	assert.ErrorIs(t, service.Save(ctx, nil), registry.ErrNilEntity)
	assert.ErrorIs(t, service.Save(ctx, &model.GoalRecord{}), registry.ErrInvalidID)

	record := &model.GoalRecord{ID: "goal-1", Action: "fibonacci", Status: model.StatusPending}
	require.NoError(t, service.Save(ctx, record))

	loaded, err := service.Load(ctx, "goal-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, loaded.Status)

	// a later save must not mutate snapshots handed out earlier
	record.Status = model.StatusActive
	require.NoError(t, service.Save(ctx, record))
	assert.Equal(t, model.StatusPending, loaded.Status)

	updated, err := service.Load(ctx, "goal-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, updated.Status)

	_, err = service.Load(ctx, "missing")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	require.NoError(t, service.Delete(ctx, "goal-1"))
	assert.ErrorIs(t, service.Delete(ctx, "goal-1"), registry.ErrNotFound)
}

func TestService_ListByStatus(t *testing.T) {
	service := New()
	ctx := context.Background()

	for id, status := range map[string]model.Status{
		"goal-1": model.StatusActive,
		"goal-2": model.StatusSucceeded,
		"goal-3": model.StatusActive,
	} {
		require.NoError(t, service.Save(ctx, &model.GoalRecord{ID: id, Status: status}))
	}

	all, err := service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := service.List(ctx, registry.NewParameter("Status", string(model.StatusActive)))
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestService_Evict(t *testing.T) {
	service := New()
	ctx := context.Background()

	cutoff := time.Now().Add(-time.Minute)
	records := []*model.GoalRecord{
		{ID: "goal-1", Status: model.StatusSucceeded, UpdatedAt: cutoff.Add(-time.Hour)},
		{ID: "goal-2", Status: model.StatusAborted, UpdatedAt: cutoff.Add(-time.Hour)},
		{ID: "goal-3", Status: model.StatusActive, UpdatedAt: cutoff.Add(-time.Hour)},
		{ID: "goal-4", Status: model.StatusSucceeded, UpdatedAt: time.Now()},
	}
	for _, record := range records {
		require.NoError(t, service.Save(ctx, record))
	}

	evicted, err := service.Evict(ctx, func(record *model.GoalRecord) bool {
		return record.Terminal() && record.UpdatedAt.Before(cutoff)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, evicted)

	remaining, err := service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

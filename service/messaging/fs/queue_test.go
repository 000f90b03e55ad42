package fs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/molginc/actionlib/model"
)

func TestQueue(t *testing.T) {
	fs := afs.New()
	ctx := context.Background()

	config := Config{
		BaseURL:    fmt.Sprintf("mem://localhost/queue-test-%d", time.Now().UnixNano()),
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
	}
	queue, err := New[model.Goal](fs, config)
	require.NoError(t, err)

	for _, location := range []string{queue.pendingURL, queue.processingURL, queue.completedURL, queue.failedURL, queue.dlqURL} {
		exists, err := fs.Exists(ctx, location)
		assert.NoError(t, err)
		assert.True(t, exists, location)
	}

	// goals come back in submission order
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		goal := model.Goal{ID: model.GoalID{ID: fmt.Sprintf("goal-%d", i), Stamp: base.Add(time.Duration(i) * time.Second)}}
		require.NoError(t, queue.Publish(ctx, &goal))
	}
	assert.Equal(t, 3, queue.Size(ctx))

	for i := 1; i <= 3; i++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		require.NotNil(t, message)
		assert.Equal(t, fmt.Sprintf("goal-%d", i), message.T().ID.ID)
		require.NoError(t, message.Ack())
	}
	assert.Equal(t, 0, queue.Size(ctx))

	// a nacked goal is redelivered until the retry limit, then dead-lettered
	goal := model.Goal{ID: model.GoalID{ID: "flaky"}}
	require.NoError(t, queue.Publish(ctx, &goal))

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		require.NotNil(t, message, "attempt %d", attempt)
		assert.Equal(t, "flaky", message.T().ID.ID)
		require.NoError(t, message.Nack(fmt.Errorf("boom")))
	}

	// retries exhausted: the next consume dead-letters it and yields nothing
	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Nil(t, message)

	dead, err := queue.listDocuments(ctx, queue.dlqURL)
	require.NoError(t, err)
	assert.Len(t, dead, 1)
}

func TestQueueInitialization(t *testing.T) {
	fs := afs.New()

	_, err := New[model.Goal](fs, Config{})
	assert.Error(t, err, "empty BaseURL must be rejected")

	config := Config{
		BaseURL:    fmt.Sprintf("mem://localhost/queue-init-%d", time.Now().UnixNano()),
		MaxRetries: 2,
	}
	queue, err := New[model.Goal](fs, config)
	require.NoError(t, err)
	assert.NotNil(t, queue)
}

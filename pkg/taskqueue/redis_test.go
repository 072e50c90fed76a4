package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisTest(t *testing.T) string {
	mr := miniredis.RunT(t)
	return mr.Addr()
}

func testQueueConfig(addr string) *Config {
	return &Config{
		RedisAddr:   addr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
		Queues:      map[string]int{"default": 1},
	}
}

func TestNewRedisQueue(t *testing.T) {
	addr := setupRedisTest(t)

	queue, err := NewRedisQueue(testQueueConfig(addr), nil)
	require.NoError(t, err, "should connect to redis")
	require.NotNil(t, queue)

	assert.NoError(t, queue.Close())
}

func TestRedisQueueEnqueueAndGet(t *testing.T) {
	addr := setupRedisTest(t)

	queue, err := NewRedisQueue(testQueueConfig(addr), nil)
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()
	payload := ProcessDocumentPayload{
		DocumentID: "doc-1",
		FilePath:   "/tmp/contract.pdf",
		FileName:   "contract.pdf",
		FileType:   "pdf",
	}

	taskID, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-1", payload)
	require.NoError(t, err, "enqueue should succeed")
	require.NotEmpty(t, taskID)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, TaskProcessDocument, task.Type)
	assert.Equal(t, "doc-1", task.DocumentID)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, 2, task.MaxRetries)

	var decoded ProcessDocumentPayload
	require.NoError(t, UnmarshalPayload(task.Payload, &decoded))
	assert.Equal(t, "contract.pdf", decoded.FileName)
}

func TestRedisQueueGetTaskNotFound(t *testing.T) {
	addr := setupRedisTest(t)

	queue, err := NewRedisQueue(testQueueConfig(addr), nil)
	require.NoError(t, err)
	defer queue.Close()

	_, err = queue.GetTask(context.Background(), "missing-task")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRedisQueueUpdateStatus(t *testing.T) {
	addr := setupRedisTest(t)

	queue, err := NewRedisQueue(testQueueConfig(addr), nil)
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-2", ProcessDocumentPayload{DocumentID: "doc-2"})
	require.NoError(t, err)

	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, ""))
	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, task.Status)
	assert.NotNil(t, task.StartedAt, "started time should be set when processing begins")
	assert.Nil(t, task.CompletedAt)

	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusFailed, "extraction failed"))
	task, err = queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "extraction failed", task.Error)
	assert.NotNil(t, task.CompletedAt)
}

func TestRedisQueueWaitForTask(t *testing.T) {
	addr := setupRedisTest(t)

	queue, err := NewRedisQueue(testQueueConfig(addr), nil)
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-3", ProcessDocumentPayload{DocumentID: "doc-3"})
	require.NoError(t, err)

	// Pending task should time out.
	_, err = queue.WaitForTask(ctx, taskID, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTaskTimeout)

	// Completed task returns immediately.
	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, ""))
	task, err := queue.WaitForTask(ctx, taskID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
}

func TestMarshalPayload(t *testing.T) {
	data, err := MarshalPayload(nil)
	assert.NoError(t, err)
	assert.Nil(t, data)

	var decoded ProcessDocumentPayload
	err = UnmarshalPayload(nil, &decoded)
	assert.Error(t, err, "empty payload should not decode")
}

package taskqueue

import (
	"context"
	"time"
)

// Queue enqueues document processing tasks and tracks their status.
type Queue interface {
	// Enqueue submits a new task and returns its ID.
	Enqueue(ctx context.Context, taskType TaskType, documentID string, payload interface{}) (string, error)

	// GetTask returns the current state of a task.
	GetTask(ctx context.Context, taskID string) (*Task, error)

	// UpdateTaskStatus records a status transition, optionally with an error message.
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, errMsg string) error

	// WaitForTask blocks until the task completes or fails, or the timeout elapses.
	WaitForTask(ctx context.Context, taskID string, timeout time.Duration) (*Task, error)

	// Close releases queue resources.
	Close() error
}

// Handler processes tasks of the types it declares.
type Handler interface {
	ProcessTask(ctx context.Context, task *Task) error
	GetTaskTypes() []TaskType
}

// Worker consumes tasks from a queue and dispatches them to handlers.
type Worker interface {
	RegisterHandler(taskType TaskType, handler Handler)
	Start() error
	Stop() error
}

// Config holds queue connection and processing settings.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
	RetryLimit    int
	RetryDelay    time.Duration
	Queues        map[string]int
}

// DefaultConfig returns queue settings suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		RedisAddr:   "localhost:6379",
		Concurrency: 10,
		RetryLimit:  3,
		RetryDelay:  time.Minute,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	}
}

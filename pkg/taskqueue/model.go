package taskqueue

import (
	"encoding/json"
	"errors"
	"time"
)

// TaskType identifies the kind of work a task carries.
type TaskType string

const (
	// TaskProcessDocument runs the full ingestion pipeline for one document:
	// extract, chunk, embed and store.
	TaskProcessDocument TaskType = "document:process"
)

// TaskStatus tracks a task through its lifecycle.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

var (
	// ErrTaskNotFound is returned when no task exists for the given ID.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskTimeout is returned when waiting for a task exceeds the deadline.
	ErrTaskTimeout = errors.New("timeout waiting for task")
)

// Task is the queue-side record of a unit of work.
type Task struct {
	ID          string          `json:"id"`
	Type        TaskType        `json:"type"`
	DocumentID  string          `json:"document_id"`
	Status      TaskStatus      `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	Error       string          `json:"error"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	StartedAt   *time.Time      `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	MaxRetries  int             `json:"max_retries"`
}

// ProcessDocumentPayload carries everything the ingestion worker needs.
type ProcessDocumentPayload struct {
	DocumentID string `json:"document_id"`
	FilePath   string `json:"file_path"`
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
}

// MarshalPayload serializes an arbitrary payload value to raw JSON.
func MarshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// UnmarshalPayload decodes a task payload into the given target.
func UnmarshalPayload(data json.RawMessage, target interface{}) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(data, target)
}

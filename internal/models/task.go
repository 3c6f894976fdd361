package models

import (
	"time"
)

// TaskStatus represents the lifecycle state of an async task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskType represents the operation a task performs
type TaskType string

const (
	TaskTypeCreatePost    TaskType = "create_post"
	TaskTypeCreateComment TaskType = "create_comment"
)

// Task is a pollable record of an offloaded operation. Result holds the
// created entity once the task completes; Error holds the failure kind
// and message otherwise.
type Task struct {
	ID          string      `json:"task_id"`
	Type        TaskType    `json:"type"`
	Status      TaskStatus  `json:"status"`
	Result      interface{} `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	ErrorKind   string      `json:"error_kind,omitempty"`
	SubmittedAt time.Time   `json:"submitted_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

package model

import "time"

// TaskState is the lifecycle state of an asynchronous scan task.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskRetrying  TaskState = "retrying"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// Terminal reports whether the state is final.
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// TaskEventType distinguishes streamed task events.
type TaskEventType string

const (
	TaskEventStatus TaskEventType = "status"
	TaskEventResult TaskEventType = "result"
)

// TaskEvent is one entry in a task's event stream.
type TaskEvent struct {
	TaskID  string        `json:"task_id"`
	Type    TaskEventType `json:"type"`
	State   TaskState     `json:"state"`
	Attempt int           `json:"attempt,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// TaskStatus is the poll-endpoint view of a task: its state plus either
// the normalized profile (on success) or a string error summary (on
// failure). Read-only to callers.
type TaskStatus struct {
	TaskID      string     `json:"task_id"`
	Scanner     string     `json:"scanner"`
	State       TaskState  `json:"state"`
	Result      any        `json:"result,omitempty"`
	Attempts    int        `json:"attempts"`
	SubmittedAt time.Time  `json:"submitted_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

package models

import "time"

// TaskStatus is the lifecycle state of a deferred task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusProcessed  TaskStatus = "processed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transition is expected.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusProcessed || s == TaskStatusFailed
}

// DeferredTask is a suspended run waiting for FireAt to resume at ResumeNodeID.
type DeferredTask struct {
	ID           string         `json:"id"`
	AutomationID string         `json:"automation_id"`
	ContactID    string         `json:"contact_id"`
	ResumeNodeID string         `json:"resume_node_id"`
	FireAt       time.Time      `json:"fire_at"`
	Context      map[string]any `json:"context,omitempty"`
	ConnectionID string         `json:"connection_id,omitempty"`
	Status       TaskStatus     `json:"status"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IsDue reports whether a pending task should fire at now.
func (t *DeferredTask) IsDue(now time.Time) bool {
	return t.Status == TaskStatusPending && !t.FireAt.After(now)
}

// Enrollment records the first time a contact entered an automation.
type Enrollment struct {
	ID           string    `json:"id"`
	AutomationID string    `json:"automation_id"`
	ContactID    string    `json:"contact_id"`
	CreatedAt    time.Time `json:"created_at"`
}

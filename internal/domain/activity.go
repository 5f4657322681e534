package domain

import "time"

// ActivityType describes a persisted activity-log operation for a task.
type ActivityType string

// ActivityType values used by the project activity log.
const (
	ActivityTaskCreated ActivityType = "TASK_CREATED"
	ActivityTaskUpdated ActivityType = "TASK_UPDATED"
	ActivityTaskMoved   ActivityType = "TASK_MOVED"
	ActivityTaskDeleted ActivityType = "TASK_DELETED"
)

// Activity represents a single activity-log entry for a project task.
type Activity struct {
	ID          int64
	ProjectID   string
	TaskID      string
	UserID      string
	Type        ActivityType
	Description string
	Metadata    map[string]string
	CreatedAt   time.Time
}

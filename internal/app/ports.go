package app

import (
	"context"
	"time"

	"github.com/hylla/taskflow/internal/domain"
)

// AccessChecker answers whether a user may read and modify a project.
type AccessChecker interface {
	HasProjectAccess(ctx context.Context, projectID, userID string) (bool, error)
}

// Repository represents repository data used by this package.
type Repository interface {
	AccessChecker

	CreateUser(context.Context, domain.User) error
	GetUser(context.Context, string) (domain.User, error)
	GetUserByEmail(context.Context, string) (domain.User, error)

	CreateProject(context.Context, domain.Project, domain.Member) error
	// GetProject returns ErrNotFound for missing and soft-deleted projects.
	GetProject(context.Context, string) (domain.Project, error)
	// ListProjectsForUser lists live projects, most recently updated first; search
	// matches a case-insensitive substring of the name when set.
	ListProjectsForUser(ctx context.Context, userID, search string) ([]domain.Project, error)
	// UpdateProject persists name, description, color and status.
	UpdateProject(context.Context, domain.Project) error
	// AddMember fails with ErrAlreadyMember when the membership exists.
	AddMember(context.Context, domain.Member) error
	ListMembers(context.Context, string) ([]MemberView, error)

	CreateTag(context.Context, domain.Tag) error
	ListTags(context.Context, string) ([]domain.Tag, error)

	GetTask(context.Context, string) (domain.Task, error)
	GetTaskView(context.Context, string) (TaskView, error)
	ListTaskViews(context.Context, string) ([]TaskView, error)
	ListActivity(context.Context, string, int) ([]domain.Activity, error)

	// WithinTx runs fn inside one write transaction holding the database write lock.
	// A returned error rolls the transaction back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the transactional view of the repository used by board mutations.
type Tx interface {
	GetTask(context.Context, string) (domain.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]domain.Task, error)
	// CountColumn counts the tasks of one column, skipping excludeTaskID when set.
	CountColumn(ctx context.Context, projectID string, status domain.Status, excludeTaskID string) (int, error)
	CreateTask(context.Context, domain.Task) error
	// UpdateTaskDetails persists every task field except status and position.
	UpdateTaskDetails(context.Context, domain.Task) error
	// ShiftPositions applies one range shift to a column, skipping excludeTaskID when set.
	ShiftPositions(ctx context.Context, projectID, excludeTaskID string, shift domain.Shift) (int64, error)
	// SetTaskSlot moves one task, failing with ErrConflict when it is no longer at expected.
	SetTaskSlot(ctx context.Context, taskID string, expected, next domain.Slot, updatedAt time.Time) error
	DeleteTask(context.Context, string) error
	InsertActivity(context.Context, domain.Activity) error
}

// ChangePublisher fans committed board changes out to subscribers.
type ChangePublisher interface {
	PublishBoardEvent(context.Context, BoardEvent) error
}

// TaskView is a task with its display relations resolved.
type TaskView struct {
	domain.Task
	Assignee *domain.User
	// Creator is nil when the creator never registered a profile.
	Creator *domain.User
	Tags    []domain.Tag
}

// MemberView is a membership with the member's profile, when registered.
type MemberView struct {
	domain.Member
	User *domain.User
}

// ProjectDetail is one project with its members, tags and board.
type ProjectDetail struct {
	Project domain.Project
	Members []MemberView
	Tags    []domain.Tag
	Board   Board
}

// Board is a project's tasks in board order plus a per-column grouping.
type Board struct {
	ProjectID string
	Tasks     []TaskView
	Grouped   map[domain.Status][]TaskView
}

// BoardEventType names a committed board change.
type BoardEventType string

// BoardEventType values.
const (
	BoardEventTaskCreated    BoardEventType = "task.created"
	BoardEventTaskUpdated    BoardEventType = "task.updated"
	BoardEventTaskReordered  BoardEventType = "task.reordered"
	BoardEventTaskDeleted    BoardEventType = "task.deleted"
	BoardEventBoardRepaired  BoardEventType = "board.repaired"
	BoardEventProjectDeleted BoardEventType = "project.deleted"
)

// BoardEvent describes one committed board change for live clients.
type BoardEvent struct {
	Type       BoardEventType `json:"type"`
	ProjectID  string         `json:"projectId"`
	TaskID     string         `json:"taskId,omitempty"`
	Status     domain.Status  `json:"status,omitempty"`
	Order      int            `json:"order"`
	FromStatus domain.Status  `json:"fromStatus,omitempty"`
	FromOrder  int            `json:"fromOrder"`
	ActorID    string         `json:"actorId"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// noopPublisher discards events when no fan-out is configured.
type noopPublisher struct{}

// PublishBoardEvent implements ChangePublisher.
func (noopPublisher) PublishBoardEvent(context.Context, BoardEvent) error {
	return nil
}

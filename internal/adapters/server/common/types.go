// Package common provides transport-agnostic server contracts used by the HTTP adapter.
package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidRequest reports malformed or semantically invalid input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrForbidden reports a caller without access to the resource.
var ErrForbidden = errors.New("forbidden")

// ErrUnauthenticated reports a request without a valid caller identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrConflict reports a concurrent modification or uniqueness violation.
var ErrConflict = errors.New("conflict")

// BoardService is the transport-facing contract served by the HTTP adapter.
type BoardService interface {
	ListProjects(ctx context.Context, search string) ([]Project, error)
	CreateProject(context.Context, CreateProjectRequest) (Project, error)
	GetProject(context.Context, string) (ProjectDetail, error)
	UpdateProject(context.Context, UpdateProjectRequest) (Project, error)
	DeleteProject(context.Context, string) error
	AddProjectMember(context.Context, AddMemberRequest) (Member, error)
	ListActivity(context.Context, string, int) ([]Activity, error)
	CreateTag(context.Context, CreateTagRequest) (Tag, error)

	CreateTask(context.Context, CreateTaskRequest) (Task, error)
	ListBoard(context.Context, string) (Board, error)
	GetTask(context.Context, string) (Task, error)
	UpdateTask(context.Context, UpdateTaskRequest) (Task, error)
	ReorderTask(context.Context, ReorderTaskRequest) (Task, error)
	DeleteTask(context.Context, string) error
}

// UserSummary is the public projection of a user.
type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Tag is the wire form of a tag.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Task is the wire form of a task; order is the position inside its status column.
type Task struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"projectId"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	Priority    string       `json:"priority"`
	DueDate     *time.Time   `json:"dueDate"`
	Order       int          `json:"order"`
	Assignee    *UserSummary `json:"assignee"`
	Creator     *UserSummary `json:"creator"`
	Tags        []Tag        `json:"tags"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Board carries a project's tasks in board order and grouped per status.
type Board struct {
	Tasks   []Task            `json:"tasks"`
	Grouped map[string][]Task `json:"grouped"`
}

// Project is the wire form of a project.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	OwnerID     string    `json:"ownerId"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectDetail is a project with its members, tags and tasks in board order.
type ProjectDetail struct {
	Project
	Members []Member `json:"members"`
	Tags    []Tag    `json:"tags"`
	Tasks   []Task   `json:"tasks"`
}

// Member is the wire form of a project membership.
type Member struct {
	ProjectID string       `json:"projectId"`
	UserID    string       `json:"userId"`
	Role      string       `json:"role"`
	JoinedAt  time.Time    `json:"joinedAt"`
	User      *UserSummary `json:"user,omitempty"`
}

// Activity is the wire form of an activity-log entry.
type Activity struct {
	ID          int64             `json:"id"`
	TaskID      string            `json:"taskId,omitempty"`
	UserID      string            `json:"userId"`
	Type        string            `json:"type"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// CreateProjectRequest carries POST /projects input.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// UpdateProjectRequest carries PATCH /projects/{id} input; absent fields are left unchanged.
type UpdateProjectRequest struct {
	ProjectID   string  `json:"-"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

// AddMemberRequest adds a user, by id or email, to a project.
type AddMemberRequest struct {
	ProjectID string `json:"-"`
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// CreateTagRequest carries POST /projects/{id}/tags input.
type CreateTagRequest struct {
	ProjectID string `json:"-"`
	Name      string `json:"name"`
	Color     string `json:"color"`
}

// CreateTaskRequest carries POST /tasks input.
type CreateTaskRequest struct {
	ProjectID   string   `json:"projectId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	DueDate     string   `json:"dueDate"`
	AssigneeID  string   `json:"assigneeId"`
	TagIDs      []string `json:"tagIds"`
}

// UpdateTaskRequest carries PATCH /tasks/{id} input; absent fields are left unchanged.
type UpdateTaskRequest struct {
	TaskID      string           `json:"-"`
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Status      *string          `json:"status"`
	Priority    *string          `json:"priority"`
	DueDate     Nullable[string] `json:"dueDate"`
	AssigneeID  Nullable[string] `json:"assigneeId"`
	Order       *int             `json:"order"`
}

// ReorderTaskRequest carries PATCH /tasks/{id}/reorder input; both fields are required.
type ReorderTaskRequest struct {
	TaskID string  `json:"-"`
	Status *string `json:"status"`
	Order  *int    `json:"order"`
}

// Nullable distinguishes an absent JSON field from an explicit null.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	n.Value = &value
	return nil
}

package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/taskflow/internal/app"
	"github.com/hylla/taskflow/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service board APIs.
type AppServiceAdapter struct {
	service *app.Service
}

var _ BoardService = (*AppServiceAdapter)(nil)

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// ListProjects lists projects visible to the caller, optionally filtered by name.
func (a *AppServiceAdapter) ListProjects(ctx context.Context, search string) ([]Project, error) {
	projects, err := a.service.ListProjects(ctx, search)
	if err != nil {
		return nil, mapAppError("list projects", err)
	}
	out := make([]Project, 0, len(projects))
	for _, project := range projects {
		out = append(out, convertProject(project))
	}
	return out, nil
}

// CreateProject creates a project owned by the caller.
func (a *AppServiceAdapter) CreateProject(ctx context.Context, in CreateProjectRequest) (Project, error) {
	project, err := a.service.CreateProject(ctx, app.CreateProjectInput{
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
	})
	if err != nil {
		return Project{}, mapAppError("create project", err)
	}
	return convertProject(project), nil
}

// GetProject returns one project with members, tags and tasks in board order.
func (a *AppServiceAdapter) GetProject(ctx context.Context, projectID string) (ProjectDetail, error) {
	detail, err := a.service.GetProject(ctx, projectID)
	if err != nil {
		return ProjectDetail{}, mapAppError("get project", err)
	}
	out := ProjectDetail{
		Project: convertProject(detail.Project),
		Members: make([]Member, 0, len(detail.Members)),
		Tags:    make([]Tag, 0, len(detail.Tags)),
		Tasks:   make([]Task, 0, len(detail.Board.Tasks)),
	}
	for _, member := range detail.Members {
		converted := convertMember(member.Member)
		converted.User = userSummary(member.User)
		out.Members = append(out.Members, converted)
	}
	for _, tag := range detail.Tags {
		out.Tags = append(out.Tags, Tag{ID: tag.ID, Name: tag.Name, Color: tag.Color})
	}
	for _, view := range detail.Board.Tasks {
		out.Tasks = append(out.Tasks, convertTask(view))
	}
	return out, nil
}

// UpdateProject applies a partial project update.
func (a *AppServiceAdapter) UpdateProject(ctx context.Context, in UpdateProjectRequest) (Project, error) {
	project, err := a.service.UpdateProject(ctx, app.UpdateProjectInput{
		ProjectID: in.ProjectID,
		Patch: domain.ProjectPatch{
			Name:        in.Name,
			Description: in.Description,
			Color:       in.Color,
		},
	})
	if err != nil {
		return Project{}, mapAppError("update project", err)
	}
	return convertProject(project), nil
}

// DeleteProject soft-deletes a project.
func (a *AppServiceAdapter) DeleteProject(ctx context.Context, projectID string) error {
	if err := a.service.DeleteProject(ctx, projectID); err != nil {
		return mapAppError("delete project", err)
	}
	return nil
}

// AddProjectMember resolves the user by id or email and adds them to the project.
func (a *AppServiceAdapter) AddProjectMember(ctx context.Context, in AddMemberRequest) (Member, error) {
	if role := strings.ToUpper(strings.TrimSpace(in.Role)); role != "" && role != string(domain.RoleMember) {
		return Member{}, fmt.Errorf("add member: role %q: %w", in.Role, ErrInvalidRequest)
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		if strings.TrimSpace(in.Email) == "" {
			return Member{}, fmt.Errorf("add member: userId or email is required: %w", ErrInvalidRequest)
		}
		user, err := a.service.FindUserByEmail(ctx, in.Email)
		if err != nil {
			return Member{}, mapAppError("add member", err)
		}
		userID = user.ID
	}
	member, err := a.service.AddProjectMember(ctx, in.ProjectID, userID)
	if err != nil {
		return Member{}, mapAppError("add member", err)
	}
	out := convertMember(member)
	if user, err := a.service.GetUser(ctx, member.UserID); err == nil {
		out.User = userSummary(&user)
	}
	return out, nil
}

// ListActivity lists the newest activity entries of a project.
func (a *AppServiceAdapter) ListActivity(ctx context.Context, projectID string, limit int) ([]Activity, error) {
	entries, err := a.service.ListActivity(ctx, projectID, limit)
	if err != nil {
		return nil, mapAppError("list activity", err)
	}
	out := make([]Activity, 0, len(entries))
	for _, entry := range entries {
		out = append(out, Activity{
			ID:          entry.ID,
			TaskID:      entry.TaskID,
			UserID:      entry.UserID,
			Type:        string(entry.Type),
			Description: entry.Description,
			Metadata:    entry.Metadata,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return out, nil
}

// CreateTag creates a project tag.
func (a *AppServiceAdapter) CreateTag(ctx context.Context, in CreateTagRequest) (Tag, error) {
	tag, err := a.service.CreateTag(ctx, app.CreateTagInput{
		ProjectID: in.ProjectID,
		Name:      in.Name,
		Color:     in.Color,
	})
	if err != nil {
		return Tag{}, mapAppError("create tag", err)
	}
	return Tag{ID: tag.ID, Name: tag.Name, Color: tag.Color}, nil
}

// CreateTask creates a task at the end of its column.
func (a *AppServiceAdapter) CreateTask(ctx context.Context, in CreateTaskRequest) (Task, error) {
	input := app.CreateTaskInput{
		ProjectID:   in.ProjectID,
		Title:       in.Title,
		Description: in.Description,
		AssigneeID:  in.AssigneeID,
		TagIDs:      in.TagIDs,
	}
	if strings.TrimSpace(in.Status) != "" {
		status, err := domain.ParseStatus(in.Status)
		if err != nil {
			return Task{}, mapAppError("create task", err)
		}
		input.Status = status
	}
	if strings.TrimSpace(in.Priority) != "" {
		priority, err := domain.ParsePriority(in.Priority)
		if err != nil {
			return Task{}, mapAppError("create task", err)
		}
		input.Priority = priority
	}
	if strings.TrimSpace(in.DueDate) != "" {
		dueAt, err := parseDueDate(in.DueDate)
		if err != nil {
			return Task{}, fmt.Errorf("create task: %w", err)
		}
		input.DueAt = &dueAt
	}

	view, err := a.service.CreateTask(ctx, input)
	if err != nil {
		return Task{}, mapAppError("create task", err)
	}
	return convertTask(view), nil
}

// ListBoard returns a project's tasks in board order and grouped by status.
func (a *AppServiceAdapter) ListBoard(ctx context.Context, projectID string) (Board, error) {
	board, err := a.service.ListBoard(ctx, projectID)
	if err != nil {
		return Board{}, mapAppError("list board", err)
	}
	out := Board{
		Tasks:   make([]Task, 0, len(board.Tasks)),
		Grouped: make(map[string][]Task, len(board.Grouped)),
	}
	for _, view := range board.Tasks {
		out.Tasks = append(out.Tasks, convertTask(view))
	}
	for status, views := range board.Grouped {
		tasks := make([]Task, 0, len(views))
		for _, view := range views {
			tasks = append(tasks, convertTask(view))
		}
		out.Grouped[string(status)] = tasks
	}
	return out, nil
}

// GetTask returns one task.
func (a *AppServiceAdapter) GetTask(ctx context.Context, taskID string) (Task, error) {
	view, err := a.service.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, mapAppError("get task", err)
	}
	return convertTask(view), nil
}

// UpdateTask applies a partial update, moving the task when its status changes.
func (a *AppServiceAdapter) UpdateTask(ctx context.Context, in UpdateTaskRequest) (Task, error) {
	input := app.UpdateTaskInput{
		TaskID: in.TaskID,
		Order:  in.Order,
		Patch: domain.TaskPatch{
			Title:       in.Title,
			Description: in.Description,
		},
	}
	if in.Status != nil {
		status, err := domain.ParseStatus(*in.Status)
		if err != nil {
			return Task{}, mapAppError("update task", err)
		}
		input.Status = &status
	}
	if in.Priority != nil {
		priority, err := domain.ParsePriority(*in.Priority)
		if err != nil {
			return Task{}, mapAppError("update task", err)
		}
		input.Patch.Priority = &priority
	}
	if in.DueDate.Set {
		if in.DueDate.Value == nil || strings.TrimSpace(*in.DueDate.Value) == "" {
			input.Patch.ClearDueAt = true
		} else {
			dueAt, err := parseDueDate(*in.DueDate.Value)
			if err != nil {
				return Task{}, fmt.Errorf("update task: %w", err)
			}
			input.Patch.DueAt = &dueAt
		}
	}
	if in.AssigneeID.Set {
		if in.AssigneeID.Value == nil || strings.TrimSpace(*in.AssigneeID.Value) == "" {
			input.Patch.ClearAssignee = true
		} else {
			input.Patch.AssigneeID = in.AssigneeID.Value
		}
	}

	view, err := a.service.UpdateTask(ctx, input)
	if err != nil {
		return Task{}, mapAppError("update task", err)
	}
	return convertTask(view), nil
}

// ReorderTask moves a task to the requested status column and order.
func (a *AppServiceAdapter) ReorderTask(ctx context.Context, in ReorderTaskRequest) (Task, error) {
	if in.Status == nil || in.Order == nil {
		return Task{}, fmt.Errorf("reorder task: status and order are required: %w", ErrInvalidRequest)
	}
	status, err := domain.ParseStatus(*in.Status)
	if err != nil {
		return Task{}, mapAppError("reorder task", err)
	}
	view, err := a.service.ReorderTask(ctx, app.ReorderTaskInput{
		TaskID:   in.TaskID,
		Status:   status,
		Position: *in.Order,
	})
	if err != nil {
		return Task{}, mapAppError("reorder task", err)
	}
	return convertTask(view), nil
}

// DeleteTask deletes a task and closes its column gap.
func (a *AppServiceAdapter) DeleteTask(ctx context.Context, taskID string) error {
	if err := a.service.DeleteTask(ctx, taskID); err != nil {
		return mapAppError("delete task", err)
	}
	return nil
}

// convertTask maps an app task view onto the wire form.
func convertTask(view app.TaskView) Task {
	out := Task{
		ID:          view.ID,
		ProjectID:   view.ProjectID,
		Title:       view.Title,
		Description: view.Description,
		Status:      string(view.Status),
		Priority:    string(view.Priority),
		DueDate:     view.DueAt,
		Order:       view.Position,
		Tags:        make([]Tag, 0, len(view.Tags)),
		CreatedAt:   view.CreatedAt,
		UpdatedAt:   view.UpdatedAt,
	}
	out.Assignee = userSummary(view.Assignee)
	out.Creator = userSummary(view.Creator)
	for _, tag := range view.Tags {
		out.Tags = append(out.Tags, Tag{ID: tag.ID, Name: tag.Name, Color: tag.Color})
	}
	return out
}

// convertProject maps a domain project onto the wire form.
func convertProject(project domain.Project) Project {
	return Project{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		Color:       project.Color,
		OwnerID:     project.OwnerID,
		Status:      string(project.Status),
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
}

// convertMember maps a domain membership onto the wire form.
func convertMember(member domain.Member) Member {
	return Member{
		ProjectID: member.ProjectID,
		UserID:    member.UserID,
		Role:      string(member.Role),
		JoinedAt:  member.JoinedAt,
	}
}

// userSummary projects a user onto its public fields; nil stays nil.
func userSummary(user *domain.User) *UserSummary {
	if user == nil {
		return nil
	}
	return &UserSummary{ID: user.ID, Name: user.Name, Avatar: user.Avatar}
}

// parseDueDate accepts RFC3339 timestamps and plain YYYY-MM-DD dates.
func parseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("dueDate %q: %w", raw, ErrInvalidRequest)
}

// mapAppError maps app/domain errors into stable transport error classes.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrForbidden):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrForbidden, err))
	case errors.Is(err, app.ErrUnauthenticated):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnauthenticated, err))
	case errors.Is(err, app.ErrConflict):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, app.ErrAlreadyMember),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPosition),
		errors.Is(err, domain.ErrInvalidColor),
		errors.Is(err, domain.ErrInvalidRole):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hylla/taskflow/internal/domain"
)

// defaultActivityLimit and maxActivityLimit bound activity queries.
const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	Publisher ChangePublisher
	Logger    *log.Logger
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service represents service data used by this package.
type Service struct {
	repo      Repository
	idGen     IDGenerator
	clock     Clock
	publisher ChangePublisher
	logger    *log.Logger
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	return &Service{
		repo:      repo,
		idGen:     idGen,
		clock:     clock,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
	}
}

// CreateUserInput holds input values for create user operations.
type CreateUserInput struct {
	Name   string
	Email  string
	Avatar string
}

// CreateUser registers the display profile of a user.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (domain.User, error) {
	user, err := domain.NewUser(s.idGen(), in.Name, in.Email, in.Avatar, s.clock())
	if err != nil {
		return domain.User{}, err
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// GetUser returns user.
func (s *Service) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return s.repo.GetUser(ctx, strings.TrimSpace(userID))
}

// FindUserByEmail returns the user registered with email.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.User{}, domain.ErrInvalidEmail
	}
	return s.repo.GetUserByEmail(ctx, email)
}

// CreateProjectInput holds input values for create project operations.
type CreateProjectInput struct {
	Name        string
	Description string
	Color       string
}

// CreateProject creates a project owned by the calling actor.
func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (domain.Project, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	now := s.clock()
	project, err := domain.NewProject(s.idGen(), actor.UserID, in.Name, in.Description, in.Color, now)
	if err != nil {
		return domain.Project{}, err
	}
	owner, err := domain.NewMember(project.ID, actor.UserID, domain.RoleOwner, now)
	if err != nil {
		return domain.Project{}, err
	}
	if err := s.repo.CreateProject(ctx, project, owner); err != nil {
		return domain.Project{}, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

// AddProjectMember grants a user access to a project; only the owner may do this.
// Re-adding an existing member fails with ErrAlreadyMember.
func (s *Service) AddProjectMember(ctx context.Context, projectID, userID string) (domain.Member, error) {
	project, err := s.ownedProject(ctx, projectID, "add member to")
	if err != nil {
		return domain.Member{}, err
	}
	user, err := s.repo.GetUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.Member{}, err
	}
	member, err := domain.NewMember(project.ID, user.ID, domain.RoleMember, s.clock())
	if err != nil {
		return domain.Member{}, err
	}
	if err := s.repo.AddMember(ctx, member); err != nil {
		return domain.Member{}, fmt.Errorf("add member %s: %w", user.ID, err)
	}
	return member, nil
}

// ListProjects lists live projects the calling actor owns or belongs to, most
// recently updated first. A non-empty search keeps names containing it.
func (s *Service) ListProjects(ctx context.Context, search string) ([]domain.Project, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProjectsForUser(ctx, actor.UserID, strings.TrimSpace(search))
}

// GetProject returns one project with its members, tags and board.
func (s *Service) GetProject(ctx context.Context, projectID string) (ProjectDetail, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return ProjectDetail{}, err
	}
	project, err := s.repo.GetProject(ctx, strings.TrimSpace(projectID))
	if err != nil {
		return ProjectDetail{}, err
	}
	if err := s.authorize(ctx, project.ID, actor); err != nil {
		return ProjectDetail{}, err
	}
	members, err := s.repo.ListMembers(ctx, project.ID)
	if err != nil {
		return ProjectDetail{}, fmt.Errorf("list members: %w", err)
	}
	tags, err := s.repo.ListTags(ctx, project.ID)
	if err != nil {
		return ProjectDetail{}, fmt.Errorf("list tags: %w", err)
	}
	views, err := s.repo.ListTaskViews(ctx, project.ID)
	if err != nil {
		return ProjectDetail{}, fmt.Errorf("list board tasks: %w", err)
	}
	return ProjectDetail{
		Project: project,
		Members: members,
		Tags:    tags,
		Board:   buildBoard(project.ID, views),
	}, nil
}

// UpdateProjectInput holds input values for update project operations.
type UpdateProjectInput struct {
	ProjectID string
	Patch     domain.ProjectPatch
}

// UpdateProject changes name, description or color; only the owner may do this.
func (s *Service) UpdateProject(ctx context.Context, in UpdateProjectInput) (domain.Project, error) {
	project, err := s.ownedProject(ctx, in.ProjectID, "update")
	if err != nil {
		return domain.Project{}, err
	}
	if in.Patch.Empty() {
		return project, nil
	}
	if err := project.ApplyPatch(in.Patch, s.clock()); err != nil {
		return domain.Project{}, err
	}
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return domain.Project{}, fmt.Errorf("update project: %w", err)
	}
	return project, nil
}

// DeleteProject soft-deletes a project; only the owner may do this.
func (s *Service) DeleteProject(ctx context.Context, projectID string) error {
	project, err := s.ownedProject(ctx, projectID, "delete")
	if err != nil {
		return err
	}
	now := s.clock()
	project.MarkDeleted(now)
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	actor, _ := ActorFromContext(ctx)
	s.publish(ctx, BoardEvent{
		Type:       BoardEventProjectDeleted,
		ProjectID:  project.ID,
		ActorID:    actor.UserID,
		OccurredAt: now.UTC(),
	})
	return nil
}

// ownedProject loads a live project and fails with ErrForbidden unless the actor owns it.
func (s *Service) ownedProject(ctx context.Context, projectID, op string) (domain.Project, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	project, err := s.repo.GetProject(ctx, strings.TrimSpace(projectID))
	if err != nil {
		return domain.Project{}, err
	}
	if project.OwnerID != actor.UserID {
		return domain.Project{}, fmt.Errorf("%s project %s: %w", op, project.ID, ErrForbidden)
	}
	return project, nil
}

// CreateTagInput holds input values for create tag operations.
type CreateTagInput struct {
	ProjectID string
	Name      string
	Color     string
}

// CreateTag creates tag.
func (s *Service) CreateTag(ctx context.Context, in CreateTagInput) (domain.Tag, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Tag{}, err
	}
	project, err := s.repo.GetProject(ctx, strings.TrimSpace(in.ProjectID))
	if err != nil {
		return domain.Tag{}, err
	}
	if err := s.authorize(ctx, project.ID, actor); err != nil {
		return domain.Tag{}, err
	}
	tag, err := domain.NewTag(s.idGen(), project.ID, in.Name, in.Color, s.clock())
	if err != nil {
		return domain.Tag{}, err
	}
	if err := s.repo.CreateTag(ctx, tag); err != nil {
		return domain.Tag{}, fmt.Errorf("create tag: %w", err)
	}
	return tag, nil
}

// GetTask returns one task with its assignee and tags.
func (s *Service) GetTask(ctx context.Context, taskID string) (TaskView, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return TaskView{}, err
	}
	view, err := s.repo.GetTaskView(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return TaskView{}, err
	}
	if err := s.authorize(ctx, view.ProjectID, actor); err != nil {
		return TaskView{}, err
	}
	return view, nil
}

// ListBoard returns a project's tasks in board order and grouped by column.
func (s *Service) ListBoard(ctx context.Context, projectID string) (Board, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return Board{}, err
	}
	project, err := s.repo.GetProject(ctx, strings.TrimSpace(projectID))
	if err != nil {
		return Board{}, err
	}
	if err := s.authorize(ctx, project.ID, actor); err != nil {
		return Board{}, err
	}
	views, err := s.repo.ListTaskViews(ctx, project.ID)
	if err != nil {
		return Board{}, fmt.Errorf("list board tasks: %w", err)
	}
	return buildBoard(project.ID, views), nil
}

// ListActivity lists the newest activity entries of a project.
func (s *Service) ListActivity(ctx context.Context, projectID string, limit int) ([]domain.Activity, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	project, err := s.repo.GetProject(ctx, strings.TrimSpace(projectID))
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, project.ID, actor); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultActivityLimit
	case limit > maxActivityLimit:
		limit = maxActivityLimit
	}
	return s.repo.ListActivity(ctx, project.ID, limit)
}

// authorize fails with ErrForbidden unless the actor may access the project.
func (s *Service) authorize(ctx context.Context, projectID string, actor Actor) error {
	ok, err := s.repo.HasProjectAccess(ctx, projectID, actor.UserID)
	if err != nil {
		return fmt.Errorf("check project access: %w", err)
	}
	if !ok {
		return fmt.Errorf("project %s: %w", projectID, ErrForbidden)
	}
	return nil
}

// validateAssignee ensures an assignee id references a known user.
func (s *Service) validateAssignee(ctx context.Context, assigneeID string) error {
	assigneeID = strings.TrimSpace(assigneeID)
	if assigneeID == "" {
		return nil
	}
	if _, err := s.repo.GetUser(ctx, assigneeID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("assignee %s: %w", assigneeID, domain.ErrInvalidID)
		}
		return err
	}
	return nil
}

// validateTags ensures every tag id belongs to the project.
func (s *Service) validateTags(ctx context.Context, projectID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	tags, err := s.repo.ListTags(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	known := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		known[tag.ID] = struct{}{}
	}
	for _, raw := range tagIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := known[id]; !ok {
			return fmt.Errorf("tag %s: %w", id, domain.ErrInvalidID)
		}
	}
	return nil
}

// buildBoard sorts views in board order and groups them per column.
func buildBoard(projectID string, views []TaskView) Board {
	tasks := make([]domain.Task, 0, len(views))
	byID := make(map[string]TaskView, len(views))
	for _, view := range views {
		tasks = append(tasks, view.Task)
		byID[view.ID] = view
	}
	domain.SortBoard(tasks)

	board := Board{
		ProjectID: projectID,
		Tasks:     make([]TaskView, 0, len(tasks)),
		Grouped:   make(map[domain.Status][]TaskView, len(domain.Statuses())),
	}
	for _, status := range domain.Statuses() {
		board.Grouped[status] = []TaskView{}
	}
	for _, task := range tasks {
		view := byID[task.ID]
		board.Tasks = append(board.Tasks, view)
		board.Grouped[task.Status] = append(board.Grouped[task.Status], view)
	}
	return board
}

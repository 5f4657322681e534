package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hylla/taskflow/internal/adapters/storage/sqlite"
	"github.com/hylla/taskflow/internal/app"
	"github.com/hylla/taskflow/internal/domain"
)

// newTestAdapter builds an adapter over an in-memory repository with two registered users.
func newTestAdapter(t *testing.T) (*AppServiceAdapter, *app.Service) {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	counter := 0
	svc := app.NewService(repo, func() string {
		counter++
		return fmt.Sprintf("id-%d", counter)
	}, func() time.Time {
		return time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	}, app.ServiceConfig{})
	for _, in := range []app.CreateUserInput{
		{Name: "Owner", Email: "owner@example.com"},
		{Name: "Helper", Email: "helper@example.com"},
	} {
		if _, err := svc.CreateUser(context.Background(), in); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}
	}
	return NewAppServiceAdapter(svc), svc
}

func TestAppServiceAdapterTaskFlow(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := app.WithActor(context.Background(), app.Actor{UserID: "id-1"})

	project, err := adapter.CreateProject(ctx, CreateProjectRequest{Name: "Site"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	member, err := adapter.AddProjectMember(ctx, AddMemberRequest{ProjectID: project.ID, Email: "HELPER@example.com"})
	if err != nil {
		t.Fatalf("AddProjectMember() error = %v", err)
	}
	if member.UserID != "id-2" || member.Role != "MEMBER" {
		t.Fatalf("unexpected member %#v", member)
	}
	if member.User == nil || member.User.Name != "Helper" {
		t.Fatalf("expected member profile, got %#v", member.User)
	}
	if _, err := adapter.AddProjectMember(ctx, AddMemberRequest{ProjectID: project.ID, UserID: "id-1"}); !errors.Is(err, ErrInvalidRequest) || !errors.Is(err, app.ErrAlreadyMember) {
		t.Fatalf("expected invalid request for owner re-add, got %v", err)
	}

	first, err := adapter.CreateTask(ctx, CreateTaskRequest{ProjectID: project.ID, Title: "One", Priority: "high", DueDate: "2026-05-01"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if first.Priority != "HIGH" || first.Status != "TODO" || first.Order != 0 {
		t.Fatalf("unexpected task %#v", first)
	}
	if first.DueDate == nil || first.DueDate.Format(time.DateOnly) != "2026-05-01" {
		t.Fatalf("unexpected due date %v", first.DueDate)
	}
	second, err := adapter.CreateTask(ctx, CreateTaskRequest{ProjectID: project.ID, Title: "Two", AssigneeID: "id-2"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if second.Order != 1 || second.Assignee == nil || second.Assignee.Name != "Helper" {
		t.Fatalf("unexpected task %#v", second)
	}

	status, order := "in-progress", 0
	moved, err := adapter.ReorderTask(ctx, ReorderTaskRequest{TaskID: first.ID, Status: &status, Order: &order})
	if err != nil {
		t.Fatalf("ReorderTask() error = %v", err)
	}
	if moved.Status != "IN_PROGRESS" || moved.Order != 0 {
		t.Fatalf("unexpected moved task %#v", moved)
	}

	var update UpdateTaskRequest
	if err := json.Unmarshal([]byte(`{"assigneeId":null,"dueDate":null}`), &update); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	update.TaskID = second.ID
	updated, err := adapter.UpdateTask(ctx, update)
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if updated.Assignee != nil {
		t.Fatalf("expected cleared assignee, got %#v", updated.Assignee)
	}
	if updated.Order != 0 {
		t.Fatalf("expected Two to have closed up to order 0, got %d", updated.Order)
	}

	board, err := adapter.ListBoard(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListBoard() error = %v", err)
	}
	if len(board.Tasks) != 2 || len(board.Grouped) != len(domain.Statuses()) {
		t.Fatalf("unexpected board %#v", board)
	}
	if got := board.Grouped["IN_PROGRESS"]; len(got) != 1 || got[0].ID != first.ID {
		t.Fatalf("unexpected IN_PROGRESS group %#v", got)
	}

	if err := adapter.DeleteTask(ctx, first.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, err := adapter.GetTask(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	activity, err := adapter.ListActivity(ctx, project.ID, 0)
	if err != nil {
		t.Fatalf("ListActivity() error = %v", err)
	}
	if len(activity) == 0 || activity[0].Type != "TASK_DELETED" {
		t.Fatalf("unexpected activity %#v", activity)
	}
}

func TestAppServiceAdapterReorderRequiresStatusAndOrder(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := app.WithActor(context.Background(), app.Actor{UserID: "id-1"})
	status, order, negative := "DONE", 1, -1

	cases := []struct {
		name string
		req  ReorderTaskRequest
		want error
	}{
		{name: "missing status", req: ReorderTaskRequest{TaskID: "t1", Order: &order}, want: ErrInvalidRequest},
		{name: "missing order", req: ReorderTaskRequest{TaskID: "t1", Status: &status}, want: ErrInvalidRequest},
		{name: "negative order", req: ReorderTaskRequest{TaskID: "t1", Status: &status, Order: &negative}, want: ErrInvalidRequest},
		{name: "missing task", req: ReorderTaskRequest{TaskID: "t1", Status: &status, Order: &order}, want: ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := adapter.ReorderTask(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAppServiceAdapterProjectLifecycle(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	owner := app.WithActor(context.Background(), app.Actor{UserID: "id-1"})
	helper := app.WithActor(context.Background(), app.Actor{UserID: "id-2"})

	project, err := adapter.CreateProject(owner, CreateProjectRequest{Name: "Website"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if project.Status != "ACTIVE" {
		t.Fatalf("status = %q, want ACTIVE", project.Status)
	}
	if _, err := adapter.AddProjectMember(owner, AddMemberRequest{ProjectID: project.ID, UserID: "id-2"}); err != nil {
		t.Fatalf("AddProjectMember() error = %v", err)
	}
	if _, err := adapter.CreateTask(owner, CreateTaskRequest{ProjectID: project.ID, Title: "Wireframes", AssigneeID: "id-2"}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	detail, err := adapter.GetProject(helper, project.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if len(detail.Members) != 2 || len(detail.Tasks) != 1 || detail.Name != "Website" {
		t.Fatalf("unexpected detail %#v", detail)
	}
	task := detail.Tasks[0]
	if task.Creator == nil || task.Creator.ID != "id-1" || task.Assignee == nil || task.Assignee.ID != "id-2" {
		t.Fatalf("unexpected task relations %#v", task)
	}

	raw, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var shape struct {
		Assignee map[string]any `json:"assignee"`
		Creator  map[string]any `json:"creator"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for name, user := range map[string]map[string]any{"assignee": shape.Assignee, "creator": shape.Creator} {
		if _, ok := user["avatar"]; !ok {
			t.Fatalf("%s lacks avatar key: %s", name, raw)
		}
	}

	name := "Website v2"
	if _, err := adapter.UpdateProject(helper, UpdateProjectRequest{ProjectID: project.ID, Name: &name}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden update by member, got %v", err)
	}
	updated, err := adapter.UpdateProject(owner, UpdateProjectRequest{ProjectID: project.ID, Name: &name})
	if err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}
	if updated.Name != name {
		t.Fatalf("name = %q, want %q", updated.Name, name)
	}
	found, err := adapter.ListProjects(helper, "v2")
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(found) != 1 || found[0].ID != project.ID {
		t.Fatalf("unexpected search result %#v", found)
	}

	if err := adapter.DeleteProject(helper, project.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden delete by member, got %v", err)
	}
	if err := adapter.DeleteProject(owner, project.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if _, err := adapter.GetProject(owner, project.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestMapAppError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "not found", err: app.ErrNotFound, want: ErrNotFound},
		{name: "forbidden", err: fmt.Errorf("project p1: %w", app.ErrForbidden), want: ErrForbidden},
		{name: "unauthenticated", err: app.ErrUnauthenticated, want: ErrUnauthenticated},
		{name: "conflict", err: app.ErrConflict, want: ErrConflict},
		{name: "already member", err: app.ErrAlreadyMember, want: ErrInvalidRequest},
		{name: "invalid status", err: domain.ErrInvalidStatus, want: ErrInvalidRequest},
		{name: "invalid position", err: domain.ErrInvalidPosition, want: ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapAppError("op", tc.err)
			if !errors.Is(got, tc.want) || !errors.Is(got, tc.err) {
				t.Fatalf("mapAppError() = %v, want both %v and %v", got, tc.want, tc.err)
			}
		})
	}
	if mapAppError("op", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	plain := errors.New("boom")
	if got := mapAppError("op", plain); !errors.Is(got, plain) || errors.Is(got, ErrInvalidRequest) {
		t.Fatalf("unexpected mapping for plain error: %v", got)
	}
}

func TestNullableDistinguishesAbsentFromNull(t *testing.T) {
	var req UpdateTaskRequest
	if err := json.Unmarshal([]byte(`{"assigneeId":"u1"}`), &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !req.AssigneeID.Set || req.AssigneeID.Value == nil || *req.AssigneeID.Value != "u1" {
		t.Fatalf("unexpected assigneeId %#v", req.AssigneeID)
	}
	if req.DueDate.Set {
		t.Fatal("expected absent dueDate to stay unset")
	}
}

func TestParseDueDate(t *testing.T) {
	got, err := parseDueDate("2026-05-01T12:30:00-03:00")
	if err != nil {
		t.Fatalf("parseDueDate() error = %v", err)
	}
	if got.Hour() != 15 || got.Location() != time.UTC {
		t.Fatalf("unexpected parsed time %v", got)
	}
	if _, err := parseDueDate("next tuesday"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewProjectDefaults(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	p, err := NewProject("p1", "u1", "  Launch  ", " desc ", "", now)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	if p.Name != "Launch" || p.Description != "desc" {
		t.Fatalf("unexpected project %#v", p)
	}
	if p.Color != DefaultProjectColor {
		t.Fatalf("color = %q, want %q", p.Color, DefaultProjectColor)
	}
	if p.Status != ProjectActive || p.Deleted() {
		t.Fatalf("status = %q, want %q", p.Status, ProjectActive)
	}
}

func TestProjectApplyPatch(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	p, err := NewProject("p1", "u1", "Launch", "", "", now)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}

	blank, bad := "  ", "red"
	if err := p.ApplyPatch(ProjectPatch{Name: &blank}, now); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if err := p.ApplyPatch(ProjectPatch{Color: &bad}, now); err != ErrInvalidColor {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}
	if p.Name != "Launch" || !p.UpdatedAt.Equal(now) {
		t.Fatalf("failed patch changed project %#v", p)
	}

	name, desc, color := " Relaunch ", " v2 ", "#0f0"
	later := now.Add(time.Hour)
	if err := p.ApplyPatch(ProjectPatch{Name: &name, Description: &desc, Color: &color}, later); err != nil {
		t.Fatalf("ApplyPatch() error = %v", err)
	}
	if p.Name != "Relaunch" || p.Description != "v2" || p.Color != "#0F0" || !p.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected patched project %#v", p)
	}
	if !(ProjectPatch{}).Empty() || (ProjectPatch{Name: &name}).Empty() {
		t.Fatal("unexpected Empty() result")
	}

	p.MarkDeleted(later)
	if !p.Deleted() {
		t.Fatal("expected deleted project")
	}
}

func TestNewProjectValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewProject("", "u1", "ok", "", "", now); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := NewProject("p1", "u1", "   ", "", "", now); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := NewProject("p1", "u1", "ok", "", "blue", now); err != ErrInvalidColor {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}
}

func TestNewUserValidation(t *testing.T) {
	now := time.Now()
	u, err := NewUser("u1", "Ana", " Ana@Example.com ", "", now)
	if err != nil {
		t.Fatalf("NewUser() error = %v", err)
	}
	if u.Email != "ana@example.com" {
		t.Fatalf("email = %q", u.Email)
	}
	if _, err := NewUser("u2", "A", "a@b.c", "", now); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := NewUser("u2", "Bob", "bob", "", now); err != ErrInvalidEmail {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestNewTaskDefaultsAndValidation(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	task, err := NewTask(TaskInput{
		ID:        "t1",
		ProjectID: "p1",
		CreatorID: "u1",
		Title:     " Write docs ",
		TagIDs:    []string{"b", "a", "b", " "},
	}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if task.Status != StatusTodo || task.Priority != PriorityMedium {
		t.Fatalf("unexpected defaults %q/%q", task.Status, task.Priority)
	}
	if len(task.TagIDs) != 2 || task.TagIDs[0] != "a" {
		t.Fatalf("unexpected tag ids %#v", task.TagIDs)
	}

	cases := []struct {
		name string
		in   TaskInput
		want error
	}{
		{"missing title", TaskInput{ID: "t", ProjectID: "p", CreatorID: "u"}, ErrInvalidTitle},
		{"bad status", TaskInput{ID: "t", ProjectID: "p", CreatorID: "u", Title: "x", Status: "LATER"}, ErrInvalidStatus},
		{"negative position", TaskInput{ID: "t", ProjectID: "p", CreatorID: "u", Title: "x", Position: -1}, ErrInvalidPosition},
		{"bad priority", TaskInput{ID: "t", ProjectID: "p", CreatorID: "u", Title: "x", Priority: "SOON"}, ErrInvalidPriority},
		{"missing creator", TaskInput{ID: "t", ProjectID: "p", Title: "x"}, ErrInvalidID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTask(tc.in, now); !errors.Is(err, tc.want) {
				t.Fatalf("NewTask() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTaskApplyPatch(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	due := now.Add(48 * time.Hour)
	task, err := NewTask(TaskInput{ID: "t1", ProjectID: "p1", CreatorID: "u1", Title: "a", AssigneeID: "u2", DueAt: &due}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	title := "renamed"
	high := PriorityHigh
	if err := task.ApplyPatch(TaskPatch{Title: &title, Priority: &high, ClearAssignee: true, ClearDueAt: true}, now.Add(time.Minute)); err != nil {
		t.Fatalf("ApplyPatch() error = %v", err)
	}
	if task.Title != "renamed" || task.Priority != PriorityHigh || task.AssigneeID != "" || task.DueAt != nil {
		t.Fatalf("unexpected patched task %#v", task)
	}
	if task.Position != 0 || task.Status != StatusTodo {
		t.Fatalf("patch must not touch ordering, got %#v", task.Slot())
	}

	blank := "  "
	if err := task.ApplyPatch(TaskPatch{Title: &blank}, now); err != ErrInvalidTitle {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
	if task.Title != "renamed" {
		t.Fatalf("failed patch mutated task: %q", task.Title)
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"todo":        StatusTodo,
		"in progress": StatusInProgress,
		"in-progress": StatusInProgress,
		" DONE ":      StatusDone,
	}
	for raw, want := range cases {
		got, err := ParseStatus(raw)
		if err != nil || got != want {
			t.Fatalf("ParseStatus(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParseStatus("blocked"); err != ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestResequenceRepairsSparseColumns(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: "a", Status: StatusTodo, Position: 1, CreatedAt: now},
		{ID: "b", Status: StatusTodo, Position: 1, CreatedAt: now.Add(time.Second)},
		{ID: "c", Status: StatusTodo, Position: 7, CreatedAt: now},
		{ID: "d", Status: StatusDone, Position: 0, CreatedAt: now},
	}
	if Dense(tasks) {
		t.Fatal("expected sparse board to be reported as not dense")
	}
	changes := Resequence(tasks)
	byID := map[string]SlotChange{}
	for _, change := range changes {
		byID[change.TaskID] = change
	}
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %#v", changes)
	}
	if byID["a"].To.Position != 0 || byID["b"].To.Position != 1 || byID["c"].To.Position != 2 {
		t.Fatalf("unexpected changes %#v", changes)
	}
	if _, ok := byID["d"]; ok {
		t.Fatal("dense column must not be rewritten")
	}
}

func TestGroupByStatusHasEveryColumn(t *testing.T) {
	grouped := GroupByStatus([]Task{{ID: "a", Status: StatusReview}})
	if len(grouped) != len(Statuses()) {
		t.Fatalf("expected %d groups, got %d", len(Statuses()), len(grouped))
	}
	if len(grouped[StatusReview]) != 1 || grouped[StatusTodo] == nil {
		t.Fatalf("unexpected grouping %#v", grouped)
	}
}

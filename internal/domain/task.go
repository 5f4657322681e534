package domain

import (
	"slices"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// ParsePriority normalizes raw input into a known priority.
func ParsePriority(raw string) (Priority, error) {
	priority := Priority(strings.ToUpper(strings.TrimSpace(raw)))
	if !slices.Contains(validPriorities, priority) {
		return "", ErrInvalidPriority
	}
	return priority, nil
}

type Task struct {
	ID          string
	ProjectID   string
	Status      Status
	Position    int
	Title       string
	Description string
	Priority    Priority
	DueAt       *time.Time
	AssigneeID  string
	CreatorID   string
	TagIDs      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TaskInput struct {
	ID          string
	ProjectID   string
	Status      Status
	Position    int
	Title       string
	Description string
	Priority    Priority
	DueAt       *time.Time
	AssigneeID  string
	CreatorID   string
	TagIDs      []string
}

func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.AssigneeID = strings.TrimSpace(in.AssigneeID)
	in.CreatorID = strings.TrimSpace(in.CreatorID)

	if in.ID == "" || in.ProjectID == "" || in.CreatorID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}
	if in.Status == "" {
		in.Status = StatusTodo
	}
	if err := (Slot{Status: in.Status, Position: in.Position}).Validate(); err != nil {
		return Task{}, err
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !slices.Contains(validPriorities, in.Priority) {
		return Task{}, ErrInvalidPriority
	}

	return Task{
		ID:          in.ID,
		ProjectID:   in.ProjectID,
		Status:      in.Status,
		Position:    in.Position,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		DueAt:       normalizeDueAt(in.DueAt),
		AssigneeID:  in.AssigneeID,
		CreatorID:   in.CreatorID,
		TagIDs:      normalizeIDs(in.TagIDs),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// Slot returns the task's current board placement.
func (t Task) Slot() Slot {
	return Slot{Status: t.Status, Position: t.Position}
}

// MoveTo applies the final slot of an executed move plan.
func (t *Task) MoveTo(slot Slot, now time.Time) error {
	if err := slot.Validate(); err != nil {
		return err
	}
	t.Status = slot.Status
	t.Position = slot.Position
	t.UpdatedAt = now.UTC()
	return nil
}

// TaskPatch carries optional field changes; nil fields are left untouched.
type TaskPatch struct {
	Title         *string
	Description   *string
	Priority      *Priority
	DueAt         *time.Time
	ClearDueAt    bool
	AssigneeID    *string
	ClearAssignee bool
}

// Empty reports whether the patch changes no field.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.DueAt == nil &&
		!p.ClearDueAt && p.AssigneeID == nil && !p.ClearAssignee
}

// ApplyPatch updates the non-ordering fields of the task.
func (t *Task) ApplyPatch(p TaskPatch, now time.Time) error {
	next := *t
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return ErrInvalidTitle
		}
		next.Title = title
	}
	if p.Description != nil {
		next.Description = strings.TrimSpace(*p.Description)
	}
	if p.Priority != nil {
		if !slices.Contains(validPriorities, *p.Priority) {
			return ErrInvalidPriority
		}
		next.Priority = *p.Priority
	}
	switch {
	case p.ClearDueAt:
		next.DueAt = nil
	case p.DueAt != nil:
		next.DueAt = normalizeDueAt(p.DueAt)
	}
	switch {
	case p.ClearAssignee:
		next.AssigneeID = ""
	case p.AssigneeID != nil:
		next.AssigneeID = strings.TrimSpace(*p.AssigneeID)
	}
	next.UpdatedAt = now.UTC()
	*t = next
	return nil
}

func normalizeDueAt(dueAt *time.Time) *time.Time {
	if dueAt == nil {
		return nil
	}
	ts := dueAt.UTC().Truncate(time.Second)
	return &ts
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := map[string]struct{}{}
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

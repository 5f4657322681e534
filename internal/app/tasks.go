package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/taskflow/internal/domain"
)

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	ProjectID   string
	Title       string
	Description string
	Status      domain.Status
	Priority    domain.Priority
	DueAt       *time.Time
	AssigneeID  string
	TagIDs      []string
}

// UpdateTaskInput holds input values for update task operations.
// A Status different from the task's current column moves it through the reorder
// engine, to Order when given and to the end of the column otherwise.
type UpdateTaskInput struct {
	TaskID string
	Patch  domain.TaskPatch
	Status *domain.Status
	Order  *int
}

// ReorderTaskInput holds the target slot of a drag-and-drop move.
type ReorderTaskInput struct {
	TaskID   string
	Status   domain.Status
	Position int
}

// CreateTask appends a new task to the end of its column.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (TaskView, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return TaskView{}, err
	}
	if in.Status == "" {
		in.Status = domain.StatusTodo
	}
	if !in.Status.Valid() {
		return TaskView{}, domain.ErrInvalidStatus
	}
	project, err := s.repo.GetProject(ctx, strings.TrimSpace(in.ProjectID))
	if err != nil {
		return TaskView{}, err
	}
	if err := s.authorize(ctx, project.ID, actor); err != nil {
		return TaskView{}, err
	}
	if err := s.validateAssignee(ctx, in.AssigneeID); err != nil {
		return TaskView{}, err
	}
	if err := s.validateTags(ctx, project.ID, in.TagIDs); err != nil {
		return TaskView{}, err
	}

	taskID := s.idGen()
	var created domain.Task
	err = s.runBoardTx(ctx, "create task", func(ctx context.Context, tx Tx) error {
		size, err := tx.CountColumn(ctx, project.ID, in.Status, "")
		if err != nil {
			return err
		}
		slot, err := domain.PlanAppend(in.Status, size)
		if err != nil {
			return err
		}
		task, err := domain.NewTask(domain.TaskInput{
			ID:          taskID,
			ProjectID:   project.ID,
			Status:      slot.Status,
			Position:    slot.Position,
			Title:       in.Title,
			Description: in.Description,
			Priority:    in.Priority,
			DueAt:       in.DueAt,
			AssigneeID:  in.AssigneeID,
			CreatorID:   actor.UserID,
			TagIDs:      in.TagIDs,
		}, s.clock())
		if err != nil {
			return err
		}
		if err := tx.CreateTask(ctx, task); err != nil {
			return err
		}
		created = task
		return tx.InsertActivity(ctx, domain.Activity{
			ProjectID:   task.ProjectID,
			TaskID:      task.ID,
			UserID:      actor.UserID,
			Type:        domain.ActivityTaskCreated,
			Description: fmt.Sprintf("Task %q created", task.Title),
			Metadata:    slotMetadata("", task.Slot()),
			CreatedAt:   task.CreatedAt,
		})
	})
	if err != nil {
		return TaskView{}, err
	}

	s.publish(ctx, BoardEvent{
		Type:       BoardEventTaskCreated,
		ProjectID:  created.ProjectID,
		TaskID:     created.ID,
		Status:     created.Status,
		Order:      created.Position,
		ActorID:    actor.UserID,
		OccurredAt: created.CreatedAt,
	})
	return s.repo.GetTaskView(ctx, created.ID)
}

// ReorderTask relocates a task to a column and position, renumbering its siblings so
// both affected columns stay dense. Moving a task onto its current slot writes nothing.
func (s *Service) ReorderTask(ctx context.Context, in ReorderTaskInput) (TaskView, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return TaskView{}, err
	}
	target := domain.Slot{Status: in.Status, Position: in.Position}
	if err := target.Validate(); err != nil {
		return TaskView{}, err
	}
	task, err := s.repo.GetTask(ctx, strings.TrimSpace(in.TaskID))
	if err != nil {
		return TaskView{}, err
	}
	if err := s.authorize(ctx, task.ProjectID, actor); err != nil {
		return TaskView{}, err
	}

	var plan domain.MovePlan
	err = s.runBoardTx(ctx, "reorder task", func(ctx context.Context, tx Tx) error {
		current, err := tx.GetTask(ctx, task.ID)
		if err != nil {
			return err
		}
		plan, err = s.moveTask(ctx, tx, current, target)
		return err
	})
	if err != nil {
		return TaskView{}, err
	}

	if !plan.NoOp() {
		s.logger.Debug("task reordered", "task_id", task.ID, "from", plan.From, "to", plan.To, "shifts", len(plan.Shifts))
		s.publish(ctx, moveEvent(BoardEventTaskReordered, task, plan, actor, s.clock()))
	}
	return s.repo.GetTaskView(ctx, task.ID)
}

// UpdateTask applies field changes and, when the status changes, moves the task through
// the same engine as ReorderTask.
func (s *Service) UpdateTask(ctx context.Context, in UpdateTaskInput) (TaskView, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return TaskView{}, err
	}
	if in.Status != nil && !in.Status.Valid() {
		return TaskView{}, domain.ErrInvalidStatus
	}
	if in.Order != nil && *in.Order < 0 {
		return TaskView{}, domain.ErrInvalidPosition
	}
	task, err := s.repo.GetTask(ctx, strings.TrimSpace(in.TaskID))
	if err != nil {
		return TaskView{}, err
	}
	if err := s.authorize(ctx, task.ProjectID, actor); err != nil {
		return TaskView{}, err
	}
	if in.Patch.AssigneeID != nil && !in.Patch.ClearAssignee {
		if err := s.validateAssignee(ctx, *in.Patch.AssigneeID); err != nil {
			return TaskView{}, err
		}
	}

	var (
		plan    domain.MovePlan
		updated domain.Task
	)
	err = s.runBoardTx(ctx, "update task", func(ctx context.Context, tx Tx) error {
		current, err := tx.GetTask(ctx, task.ID)
		if err != nil {
			return err
		}
		plan = domain.MovePlan{From: current.Slot(), To: current.Slot()}

		if !in.Patch.Empty() {
			if err := current.ApplyPatch(in.Patch, s.clock()); err != nil {
				return err
			}
			if err := tx.UpdateTaskDetails(ctx, current); err != nil {
				return err
			}
		}

		if target, ok := updateTarget(current, in); ok {
			plan, err = s.moveTask(ctx, tx, current, target)
			if err != nil {
				return err
			}
			if err := current.MoveTo(plan.To, s.clock()); err != nil {
				return err
			}
		}
		updated = current

		activity := domain.Activity{
			ProjectID: current.ProjectID,
			TaskID:    current.ID,
			UserID:    actor.UserID,
			CreatedAt: s.clock().UTC(),
		}
		switch {
		case plan.CrossColumn():
			activity.Type = domain.ActivityTaskMoved
			activity.Description = fmt.Sprintf("Task moved to %s", plan.To.Status)
			activity.Metadata = slotMetadata(plan.From.Status, plan.To)
		case !in.Patch.Empty():
			activity.Type = domain.ActivityTaskUpdated
			activity.Description = fmt.Sprintf("Task %q updated", current.Title)
		default:
			return nil
		}
		return tx.InsertActivity(ctx, activity)
	})
	if err != nil {
		return TaskView{}, err
	}

	switch {
	case !plan.NoOp():
		s.publish(ctx, moveEvent(BoardEventTaskReordered, updated, plan, actor, s.clock()))
	case !in.Patch.Empty():
		s.publish(ctx, BoardEvent{
			Type:       BoardEventTaskUpdated,
			ProjectID:  updated.ProjectID,
			TaskID:     updated.ID,
			Status:     updated.Status,
			Order:      updated.Position,
			ActorID:    actor.UserID,
			OccurredAt: updated.UpdatedAt,
		})
	}
	return s.repo.GetTaskView(ctx, task.ID)
}

// DeleteTask removes a task and closes the gap it leaves in its column.
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	task, err := s.repo.GetTask(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, task.ProjectID, actor); err != nil {
		return err
	}

	var removed domain.Task
	err = s.runBoardTx(ctx, "delete task", func(ctx context.Context, tx Tx) error {
		current, err := tx.GetTask(ctx, task.ID)
		if err != nil {
			return err
		}
		shift, err := domain.PlanRemoval(current.Slot())
		if err != nil {
			return err
		}
		if err := tx.DeleteTask(ctx, current.ID); err != nil {
			return err
		}
		if _, err := tx.ShiftPositions(ctx, current.ProjectID, "", shift); err != nil {
			return err
		}
		removed = current
		return tx.InsertActivity(ctx, domain.Activity{
			ProjectID:   current.ProjectID,
			TaskID:      current.ID,
			UserID:      actor.UserID,
			Type:        domain.ActivityTaskDeleted,
			Description: fmt.Sprintf("Task %q deleted", current.Title),
			Metadata:    slotMetadata(current.Status, domain.Slot{}),
			CreatedAt:   s.clock().UTC(),
		})
	})
	if err != nil {
		return err
	}

	s.publish(ctx, BoardEvent{
		Type:       BoardEventTaskDeleted,
		ProjectID:  removed.ProjectID,
		TaskID:     removed.ID,
		FromStatus: removed.Status,
		FromOrder:  removed.Position,
		ActorID:    actor.UserID,
		OccurredAt: s.clock().UTC(),
	})
	return nil
}

// RepairBoard renumbers every column of a project to 0..n-1, keeping relative order.
// It returns the number of tasks whose position changed.
func (s *Service) RepairBoard(ctx context.Context, projectID string) (int, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return 0, err
	}
	project, err := s.repo.GetProject(ctx, strings.TrimSpace(projectID))
	if err != nil {
		return 0, err
	}
	if err := s.authorize(ctx, project.ID, actor); err != nil {
		return 0, err
	}

	var changed int
	err = s.runBoardTx(ctx, "repair board", func(ctx context.Context, tx Tx) error {
		tasks, err := tx.ListTasks(ctx, project.ID)
		if err != nil {
			return err
		}
		changes := domain.Resequence(tasks)
		now := s.clock()
		for _, change := range changes {
			if err := tx.SetTaskSlot(ctx, change.TaskID, change.From, change.To, now); err != nil {
				return err
			}
		}
		changed = len(changes)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.logger.Info("board repaired", "project_id", project.ID, "changed", changed)
		s.publish(ctx, BoardEvent{
			Type:       BoardEventBoardRepaired,
			ProjectID:  project.ID,
			ActorID:    actor.UserID,
			OccurredAt: s.clock().UTC(),
		})
	}
	return changed, nil
}

// moveTask is the single reorder engine: it plans the move against the current column
// size and executes the sibling shifts and the guarded slot update inside tx.
func (s *Service) moveTask(ctx context.Context, tx Tx, task domain.Task, target domain.Slot) (domain.MovePlan, error) {
	size, err := tx.CountColumn(ctx, task.ProjectID, target.Status, task.ID)
	if err != nil {
		return domain.MovePlan{}, fmt.Errorf("count column %s: %w", target.Status, err)
	}
	plan, err := domain.PlanMove(task.Slot(), target, size)
	if err != nil {
		return domain.MovePlan{}, err
	}
	if plan.NoOp() {
		return plan, nil
	}
	for _, shift := range plan.Shifts {
		if _, err := tx.ShiftPositions(ctx, task.ProjectID, task.ID, shift); err != nil {
			return domain.MovePlan{}, fmt.Errorf("shift column %s: %w", shift.Status, err)
		}
	}
	if err := tx.SetTaskSlot(ctx, task.ID, plan.From, plan.To, s.clock()); err != nil {
		return domain.MovePlan{}, err
	}
	return plan, nil
}

// runBoardTx runs one board mutation transaction and retries it once on ErrConflict.
func (s *Service) runBoardTx(ctx context.Context, op string, fn func(context.Context, Tx) error) error {
	err := s.repo.WithinTx(ctx, fn)
	if errors.Is(err, ErrConflict) {
		s.logger.Warn("board transaction conflict, retrying", "op", op, "err", err)
		err = s.repo.WithinTx(ctx, fn)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// publish fans an event out; failures are logged and never fail the mutation.
func (s *Service) publish(ctx context.Context, event BoardEvent) {
	if err := s.publisher.PublishBoardEvent(ctx, event); err != nil {
		s.logger.Warn("publish board event failed", "type", event.Type, "project_id", event.ProjectID, "err", err)
	}
}

// updateTarget resolves where an update moves the task, if anywhere.
func updateTarget(task domain.Task, in UpdateTaskInput) (domain.Slot, bool) {
	statusChanged := in.Status != nil && *in.Status != task.Status
	switch {
	case statusChanged && in.Order != nil:
		return domain.Slot{Status: *in.Status, Position: *in.Order}, true
	case statusChanged:
		return domain.Slot{Status: *in.Status, Position: domain.EndOfColumn}, true
	case in.Order != nil:
		return domain.Slot{Status: task.Status, Position: *in.Order}, true
	default:
		return domain.Slot{}, false
	}
}

// moveEvent builds the board event for an executed move plan.
func moveEvent(eventType BoardEventType, task domain.Task, plan domain.MovePlan, actor Actor, now time.Time) BoardEvent {
	return BoardEvent{
		Type:       eventType,
		ProjectID:  task.ProjectID,
		TaskID:     task.ID,
		Status:     plan.To.Status,
		Order:      plan.To.Position,
		FromStatus: plan.From.Status,
		FromOrder:  plan.From.Position,
		ActorID:    actor.UserID,
		OccurredAt: now.UTC(),
	}
}

// slotMetadata records a move for the activity log.
func slotMetadata(fromStatus domain.Status, to domain.Slot) map[string]string {
	metadata := map[string]string{}
	if fromStatus != "" {
		metadata["from_status"] = string(fromStatus)
	}
	if to.Status != "" {
		metadata["to_status"] = string(to.Status)
		metadata["to_order"] = strconv.Itoa(to.Position)
	}
	return metadata
}

package domain

import "math"

// Unbounded marks a shift range with no upper position limit.
const Unbounded = -1

// EndOfColumn is a target position that PlanMove clamps to the last slot of a column.
const EndOfColumn = math.MaxInt32

// Shift moves every task of one column whose position lies in [From, To] by Delta.
type Shift struct {
	Status Status
	From   int
	To     int
	Delta  int
}

// Covers reports whether a task at slot falls inside the shift range.
func (s Shift) Covers(slot Slot) bool {
	if slot.Status != s.Status || slot.Position < s.From {
		return false
	}
	return s.To == Unbounded || slot.Position <= s.To
}

// MovePlan is the full set of sibling shifts plus the moved task's final slot.
type MovePlan struct {
	From   Slot
	To     Slot
	Shifts []Shift
}

// NoOp reports whether executing the plan would change nothing.
func (p MovePlan) NoOp() bool {
	return p.From == p.To && len(p.Shifts) == 0
}

// CrossColumn reports whether the plan changes the task's status.
func (p MovePlan) CrossColumn() bool {
	return p.From.Status != p.To.Status
}

// PlanMove computes how to relocate the task at from to target.
// targetSize is the number of tasks in the target column not counting the moved task.
// Positions past the end of the target column are clamped so the task lands last.
func PlanMove(from, target Slot, targetSize int) (MovePlan, error) {
	if err := from.Validate(); err != nil {
		return MovePlan{}, err
	}
	if err := target.Validate(); err != nil {
		return MovePlan{}, err
	}
	if targetSize < 0 {
		return MovePlan{}, ErrInvalidPosition
	}
	if target.Position > targetSize {
		target.Position = targetSize
	}

	plan := MovePlan{From: from, To: target}
	if from.Status == target.Status {
		switch {
		case target.Position > from.Position:
			plan.Shifts = []Shift{{Status: from.Status, From: from.Position + 1, To: target.Position, Delta: -1}}
		case target.Position < from.Position:
			plan.Shifts = []Shift{{Status: from.Status, From: target.Position, To: from.Position - 1, Delta: 1}}
		}
		return plan, nil
	}

	plan.Shifts = []Shift{
		{Status: from.Status, From: from.Position + 1, To: Unbounded, Delta: -1},
		{Status: target.Status, From: target.Position, To: Unbounded, Delta: 1},
	}
	return plan, nil
}

// PlanRemoval returns the shift that closes the gap left by removing the task at from.
func PlanRemoval(from Slot) (Shift, error) {
	if err := from.Validate(); err != nil {
		return Shift{}, err
	}
	return Shift{Status: from.Status, From: from.Position + 1, To: Unbounded, Delta: -1}, nil
}

// PlanAppend returns the slot at the end of a column holding size tasks.
func PlanAppend(status Status, size int) (Slot, error) {
	if size < 0 {
		return Slot{}, ErrInvalidPosition
	}
	slot := Slot{Status: status, Position: size}
	if err := slot.Validate(); err != nil {
		return Slot{}, err
	}
	return slot, nil
}

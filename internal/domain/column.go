package domain

import "strings"

// Status identifies the kanban column a task belongs to.
type Status string

// Status values in board order.
const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusReview     Status = "REVIEW"
	StatusDone       Status = "DONE"
	StatusCancelled  Status = "CANCELLED"
)

var boardStatuses = []Status{StatusTodo, StatusInProgress, StatusReview, StatusDone, StatusCancelled}

// Statuses returns every status in board order.
func Statuses() []Status {
	return append([]Status(nil), boardStatuses...)
}

// ParseStatus normalizes raw input into a known status.
func ParseStatus(raw string) (Status, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	for _, status := range boardStatuses {
		if string(status) == normalized {
			return status, nil
		}
	}
	return "", ErrInvalidStatus
}

// Valid reports whether the status is one of the board columns.
func (s Status) Valid() bool {
	for _, status := range boardStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// Rank returns the board index of the status, or -1 when unknown.
func (s Status) Rank() int {
	for idx, status := range boardStatuses {
		if status == s {
			return idx
		}
	}
	return -1
}

// Slot is the (column, position) pair that places a task on the board.
type Slot struct {
	Status   Status
	Position int
}

// Validate checks the slot for a known status and a non-negative position.
func (s Slot) Validate() error {
	if !s.Status.Valid() {
		return ErrInvalidStatus
	}
	if s.Position < 0 {
		return ErrInvalidPosition
	}
	return nil
}

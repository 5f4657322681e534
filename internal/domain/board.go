package domain

import (
	"slices"
	"strings"
)

// SlotChange records a task whose position must be rewritten.
type SlotChange struct {
	TaskID string
	From   Slot
	To     Slot
}

// SortBoard orders tasks by board column, then position, then creation time and id.
func SortBoard(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		if a.Status != b.Status {
			return a.Status.Rank() - b.Status.Rank()
		}
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// GroupByStatus buckets tasks per column; every status key is present.
func GroupByStatus(tasks []Task) map[Status][]Task {
	grouped := make(map[Status][]Task, len(boardStatuses))
	for _, status := range boardStatuses {
		grouped[status] = []Task{}
	}
	for _, task := range tasks {
		grouped[task.Status] = append(grouped[task.Status], task)
	}
	return grouped
}

// Resequence computes the changes that make every column dense from zero while keeping
// the current relative order of its tasks.
func Resequence(tasks []Task) []SlotChange {
	ordered := slices.Clone(tasks)
	SortBoard(ordered)

	changes := make([]SlotChange, 0)
	next := map[Status]int{}
	for _, task := range ordered {
		want := next[task.Status]
		next[task.Status] = want + 1
		if task.Position == want {
			continue
		}
		changes = append(changes, SlotChange{
			TaskID: task.ID,
			From:   task.Slot(),
			To:     Slot{Status: task.Status, Position: want},
		})
	}
	return changes
}

// Dense reports whether every column of tasks holds positions 0..n-1 exactly once.
func Dense(tasks []Task) bool {
	seen := map[Status]map[int]struct{}{}
	for _, task := range tasks {
		if seen[task.Status] == nil {
			seen[task.Status] = map[int]struct{}{}
		}
		if _, dup := seen[task.Status][task.Position]; dup {
			return false
		}
		seen[task.Status][task.Position] = struct{}{}
	}
	for _, positions := range seen {
		for pos := range len(positions) {
			if _, ok := positions[pos]; !ok {
				return false
			}
		}
	}
	return true
}

package domain

import (
	"strings"
	"time"
)

// Tag labels tasks inside one project.
type Tag struct {
	ID        string
	ProjectID string
	Name      string
	Color     string
	CreatedAt time.Time
}

// NewTag constructs a new value for this package.
func NewTag(id, projectID, name, color string, now time.Time) (Tag, error) {
	id = strings.TrimSpace(id)
	projectID = strings.TrimSpace(projectID)
	name = strings.ToLower(strings.TrimSpace(name))
	if id == "" || projectID == "" {
		return Tag{}, ErrInvalidID
	}
	if name == "" {
		return Tag{}, ErrInvalidName
	}
	color, err := normalizeColor(color)
	if err != nil {
		return Tag{}, err
	}
	return Tag{ID: id, ProjectID: projectID, Name: name, Color: color, CreatedAt: now.UTC()}, nil
}

package domain

import (
	"strings"
	"time"
)

// DefaultProjectColor is applied when a project is created without a color.
const DefaultProjectColor = "#3B82F6"

// MemberRole describes a user's role inside a project.
type MemberRole string

// MemberRole values.
const (
	RoleOwner  MemberRole = "OWNER"
	RoleMember MemberRole = "MEMBER"
)

// ProjectStatus marks whether a project is live or soft-deleted.
type ProjectStatus string

// ProjectStatus values.
const (
	ProjectActive  ProjectStatus = "ACTIVE"
	ProjectDeleted ProjectStatus = "DELETED"
)

// Project represents project data used by this package.
type Project struct {
	ID          string
	Name        string
	Description string
	Color       string
	OwnerID     string
	Status      ProjectStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectPatch holds optional project field changes; nil fields are left as is.
type ProjectPatch struct {
	Name        *string
	Description *string
	Color       *string
}

// Empty reports whether the patch changes nothing.
func (p ProjectPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Color == nil
}

// Member links a user to a project.
type Member struct {
	ProjectID string
	UserID    string
	Role      MemberRole
	JoinedAt  time.Time
}

// NewProject constructs a new value for this package.
func NewProject(id, ownerID, name, description, color string, now time.Time) (Project, error) {
	id = strings.TrimSpace(id)
	ownerID = strings.TrimSpace(ownerID)
	name = strings.TrimSpace(name)
	if id == "" || ownerID == "" {
		return Project{}, ErrInvalidID
	}
	if name == "" {
		return Project{}, ErrInvalidName
	}
	color, err := normalizeColor(color)
	if err != nil {
		return Project{}, err
	}

	return Project{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(description),
		Color:       color,
		OwnerID:     ownerID,
		Status:      ProjectActive,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// ApplyPatch validates and applies a patch; on error the project is unchanged.
func (p *Project) ApplyPatch(patch ProjectPatch, now time.Time) error {
	next := *p
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
		if next.Name == "" {
			return ErrInvalidName
		}
	}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Color != nil {
		color, err := normalizeColor(*patch.Color)
		if err != nil {
			return err
		}
		next.Color = color
	}
	next.UpdatedAt = now.UTC()
	*p = next
	return nil
}

// MarkDeleted soft-deletes the project.
func (p *Project) MarkDeleted(now time.Time) {
	p.Status = ProjectDeleted
	p.UpdatedAt = now.UTC()
}

// Deleted reports whether the project was soft-deleted.
func (p Project) Deleted() bool {
	return p.Status == ProjectDeleted
}

// NewMember constructs a project membership.
func NewMember(projectID, userID string, role MemberRole, now time.Time) (Member, error) {
	projectID = strings.TrimSpace(projectID)
	userID = strings.TrimSpace(userID)
	if projectID == "" || userID == "" {
		return Member{}, ErrInvalidID
	}
	if role == "" {
		role = RoleMember
	}
	if role != RoleOwner && role != RoleMember {
		return Member{}, ErrInvalidRole
	}
	return Member{ProjectID: projectID, UserID: userID, Role: role, JoinedAt: now.UTC()}, nil
}

// normalizeColor accepts #RGB or #RRGGBB hex colors and falls back to the default.
func normalizeColor(color string) (string, error) {
	color = strings.TrimSpace(color)
	if color == "" {
		return DefaultProjectColor, nil
	}
	if !strings.HasPrefix(color, "#") || (len(color) != 4 && len(color) != 7) {
		return "", ErrInvalidColor
	}
	for _, r := range color[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return "", ErrInvalidColor
		}
	}
	return strings.ToUpper(color), nil
}

package domain

import (
	"strings"
	"time"
)

// User carries the display fields shown for assignees and actors.
type User struct {
	ID        string
	Name      string
	Email     string
	Avatar    string
	CreatedAt time.Time
}

// NewUser constructs a new value for this package.
func NewUser(id, name, email, avatar string, now time.Time) (User, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if id == "" {
		return User{}, ErrInvalidID
	}
	if len([]rune(name)) < 2 {
		return User{}, ErrInvalidName
	}
	if at := strings.Index(email, "@"); at <= 0 || at == len(email)-1 {
		return User{}, ErrInvalidEmail
	}
	return User{
		ID:        id,
		Name:      name,
		Email:     email,
		Avatar:    strings.TrimSpace(avatar),
		CreatedAt: now.UTC(),
	}, nil
}

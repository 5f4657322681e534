package domain

import "errors"

var (
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidTitle    = errors.New("invalid title")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPosition = errors.New("invalid position")
	ErrInvalidColor    = errors.New("invalid color")
	ErrInvalidRole     = errors.New("invalid member role")
)

package app

import "errors"

// ErrNotFound and related errors describe authorization and runtime failures.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrConflict        = errors.New("concurrent modification")
	ErrAlreadyMember   = errors.New("user is already a project member")
)

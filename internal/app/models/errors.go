package models

import "errors"

// Domain specific errors shared across packages.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrValidation      = errors.New("validation failed")
	ErrEmailEmpty      = errors.New("email cannot be empty")
	ErrNoSession       = errors.New("no authenticated session")
)

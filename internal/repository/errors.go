package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateMember is returned when a unique constraint on the
	// provider external id is violated outside the upsert path
	ErrDuplicateMember = errors.New("member with this external id already exists")
)

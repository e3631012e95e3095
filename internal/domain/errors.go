package domain

import "errors"

var (
	// ErrInvalidEntry rejects an entry with non-positive price or cost.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrNotFound means no entry with the requested id exists in the book.
	ErrNotFound = errors.New("entry not found")

	// ErrStateMigrationRequired means persisted state still uses the legacy
	// single-position schema and must be migrated before the engine touches it.
	ErrStateMigrationRequired = errors.New("position state requires migration")
)

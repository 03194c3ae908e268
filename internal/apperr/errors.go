// Package apperr defines the error taxonomy shared across seqsync packages.
package apperr

import "errors"

var (
	// ErrNotInitialized is returned when no structure has been loaded yet.
	ErrNotInitialized = errors.New("no structure loaded")
	// ErrNotFound is returned when a chain, region or residue does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmptyMatch marks a query that matched zero atoms. Callers treat it as a soft success.
	ErrEmptyMatch = errors.New("query matched no atoms")
	// ErrAdapterFailure wraps errors and panics raised by the structure adapter.
	ErrAdapterFailure = errors.New("structure adapter failure")
	// ErrConstraintViolation is returned when a selection mutation exceeds a configured limit.
	ErrConstraintViolation = errors.New("constraint violation")
	ErrInvalidArgument     = errors.New("invalid argument")
	// ErrBusy is returned when a visibility operation is already in flight.
	ErrBusy = errors.New("operation in progress")
	// ErrAlreadyExists is returned when creating a manifest whose id is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict is returned when an If-Match checksum does not match.
	ErrConflict = errors.New("conflict")
	// ErrStale is returned when work resolves against a structure that has since been replaced.
	ErrStale = errors.New("structure generation changed")
)

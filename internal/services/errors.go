package services

import "errors"

var (
	ErrNotFound = errors.New("file not found")
	// ErrNotFoundOrUnauthorized is returned for both unknown codes and codes owned by
	// someone else so callers cannot probe for other users' files.
	ErrNotFoundOrUnauthorized = errors.New("file not found or unauthorized")
	ErrForbidden              = errors.New("operation not permitted for this role")
	ErrConflict               = errors.New("conflict")
	ErrUpstream               = errors.New("upstream storage failure")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrUnauthenticated        = errors.New("not authenticated")
)

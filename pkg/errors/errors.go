package jobtrail_errors

import "errors"

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotConfigured = errors.New("storage backend not configured")
	ErrUpstream      = errors.New("upstream storage failure")
	ErrTooLarge      = errors.New("file too large")
	ErrRateLimited   = errors.New("rate limited")
)

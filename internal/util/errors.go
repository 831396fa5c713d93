package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrInvalidConfig indicates malformed or incomplete configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound indicates a referenced record does not exist
	ErrNotFound = errors.New("not found")

	// ErrPersistence indicates a store call failed
	ErrPersistence = errors.New("persistence failure")

	// ErrUnsupported indicates a file format or operation is not supported
	ErrUnsupported = errors.New("unsupported")

	// ErrAlreadyImplemented indicates a recommendation was already marked implemented
	ErrAlreadyImplemented = errors.New("recommendation already implemented")
)

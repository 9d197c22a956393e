package script

import "errors"

// Errors for Lua script operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when execution times out.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrNotTable is returned when an override chunk does not return a table.
	ErrNotTable = errors.New("override script must return a table")
)

// Package execctx provides the execution context for command handlers.
package execctx

import (
	"time"

	"github.com/dshills/emuctl/internal/host"
	"github.com/dshills/emuctl/internal/input"
	"github.com/dshills/emuctl/internal/logging"
)

// ExecutionContext is what a handler sees of the dispatcher that invoked it.
// A fresh context is built for every dispatch.
type ExecutionContext struct {
	// Host is the borrowed application object. May be nil.
	Host host.Host

	// Logger is scoped to the current method. Never nil when built by New.
	Logger *logging.Logger

	// Method is the method being executed.
	Method string

	// OperationID identifies the current operation.
	OperationID string

	// StartedAt is when the dispatcher began executing the operation.
	StartedAt time.Time
}

// New creates an execution context for a single operation.
func New(h host.Host, logger *logging.Logger, method, operationID string) *ExecutionContext {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ExecutionContext{
		Host:        h,
		Logger:      logger,
		Method:      method,
		OperationID: operationID,
		StartedAt:   time.Now(),
	}
}

// ValueFromState derives an input value from a named button state.
func (c *ExecutionContext) ValueFromState(state string, button int) int {
	return input.ValueFromState(state, button)
}

// Capability returns the host as capability T when the host implements it.
func Capability[T any](c *ExecutionContext) (T, bool) {
	var zero T
	if c == nil || c.Host == nil {
		return zero, false
	}
	v, ok := c.Host.(T)
	return v, ok
}

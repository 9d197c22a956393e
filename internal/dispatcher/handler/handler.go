// Package handler provides the handler, operation and command table types
// used by the dispatcher.
package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/dshills/emuctl/internal/dispatcher/execctx"
)

// Operation is the request record passed to a handler. A new Operation is
// created for every dispatch and is never shared between calls.
type Operation struct {
	// ID uniquely identifies this operation.
	ID string

	// Method is the dot-namespaced command name (e.g. "state.quickSave").
	Method string

	// Params holds the caller-supplied parameters. Never nil.
	Params map[string]any

	// Timestamp is when the operation was created.
	Timestamp time.Time
}

// NewOperation creates an operation with a fresh ID and the current time.
func NewOperation(method string, params map[string]any) Operation {
	if params == nil {
		params = map[string]any{}
	}
	return Operation{
		ID:        uuid.NewString(),
		Method:    method,
		Params:    params,
		Timestamp: time.Now(),
	}
}

// Handler executes an operation against the host reachable through ctx.
// It returns an arbitrary result or an error.
type Handler func(op Operation, ctx *execctx.ExecutionContext) (any, error)

// Func adapts a handler that does not need the execution context.
func Func(fn func(op Operation) (any, error)) Handler {
	return func(op Operation, _ *execctx.ExecutionContext) (any, error) {
		return fn(op)
	}
}

// Action adapts a handler that produces no result.
func Action(fn func(op Operation, ctx *execctx.ExecutionContext) error) Handler {
	return func(op Operation, ctx *execctx.ExecutionContext) (any, error) {
		return nil, fn(op, ctx)
	}
}

// AsHandler converts v to a Handler if it is one of the accepted function
// shapes: Handler, func(Operation, *execctx.ExecutionContext) (any, error),
// func(Operation) (any, error) or func(Operation) error.
// A nil function is not a handler.
func AsHandler(v any) (Handler, bool) {
	switch fn := v.(type) {
	case Handler:
		return fn, fn != nil
	case func(Operation, *execctx.ExecutionContext) (any, error):
		return Handler(fn), fn != nil
	case func(Operation) (any, error):
		return Func(fn), fn != nil
	case func(Operation) error:
		if fn == nil {
			return nil, false
		}
		return func(op Operation, _ *execctx.ExecutionContext) (any, error) {
			return nil, fn(op)
		}, true
	}
	return nil, false
}

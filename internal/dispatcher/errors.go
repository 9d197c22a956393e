package dispatcher

import (
	"errors"
	"fmt"
)

// Dispatcher errors.
var (
	// ErrUnknownMethod matches any *UnknownMethodError.
	ErrUnknownMethod = errors.New("dispatcher: unknown method")

	// ErrOperationFailed matches any *OperationFailedError.
	ErrOperationFailed = errors.New("dispatcher: operation failed")

	// ErrHandlerPanic matches any *PanicError.
	ErrHandlerPanic = errors.New("dispatcher: handler panic")
)

// UnknownMethodError reports a method missing from the command table.
type UnknownMethodError struct {
	Method string
}

// Error implements error.
func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("dispatcher: unknown method %q", e.Method)
}

// Is matches ErrUnknownMethod.
func (e *UnknownMethodError) Is(target error) bool {
	return target == ErrUnknownMethod
}

// OperationFailedError reports a handler failure. Err is the original cause.
type OperationFailedError struct {
	Method      string
	OperationID string
	Err         error
}

// Error implements error.
func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("dispatcher: %s failed: %v", e.Method, e.Err)
}

// Unwrap returns the handler's error.
func (e *OperationFailedError) Unwrap() error {
	return e.Err
}

// Is matches ErrOperationFailed.
func (e *OperationFailedError) Is(target error) bool {
	return target == ErrOperationFailed
}

// PanicError is the failure recorded when a handler panics.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Is matches ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

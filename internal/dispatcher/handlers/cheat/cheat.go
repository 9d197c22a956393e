// Package cheat provides handlers for cheat code commands.
package cheat

import (
	"github.com/dshills/emuctl/internal/dispatcher/execctx"
	"github.com/dshills/emuctl/internal/dispatcher/handler"
	"github.com/dshills/emuctl/internal/host"
)

// Method names for cheat operations.
const (
	MethodSet   = "cheat.set"
	MethodReset = "cheat.reset"
)

// Methods lists every cheat method.
var Methods = []string{MethodSet, MethodReset}

// Register adds the cheat handlers to t.
func Register(t *handler.Table) {
	t.MustRegister(MethodSet, Set)
	t.MustRegister(MethodReset, Reset)
}

// Set enables or disables a cheat.
//
// Params:
//   - index (int, required): cheat index, 0 or greater.
//   - enabled (bool, required): whether the cheat is active.
//   - code (string, optional): cheat code; keeps the stored code when empty.
func Set(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	c, ok := execctx.Capability[host.Cheats](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "Cheats"}, nil
	}
	index, err := op.RequireInt("index")
	if err != nil {
		return nil, err
	}
	if index < 0 {
		return nil, &handler.ParamError{Method: op.Method, Param: "index", Reason: "must not be negative"}
	}
	if !op.Has("enabled") {
		return nil, &handler.ParamError{Method: op.Method, Param: "enabled", Reason: "is required"}
	}
	enabled, err := op.Bool("enabled", false)
	if err != nil {
		return nil, err
	}
	code, err := op.String("code", "")
	if err != nil {
		return nil, err
	}
	return nil, c.SetCheat(index, enabled, code)
}

// Reset removes all cheats. No params.
func Reset(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	c, ok := execctx.Capability[host.Cheats](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "Cheats"}, nil
	}
	c.ResetCheats()
	return nil, nil
}

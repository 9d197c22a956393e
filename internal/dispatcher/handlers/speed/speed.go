// Package speed provides handlers for fast-forward, slow-motion and rewind.
package speed

import (
	"github.com/dshills/emuctl/internal/dispatcher/execctx"
	"github.com/dshills/emuctl/internal/dispatcher/handler"
	"github.com/dshills/emuctl/internal/host"
)

// Method names for speed operations.
const (
	MethodFastForward = "speed.fastForward"
	MethodSlowMotion  = "speed.slowMotion"
	MethodRewind      = "speed.rewind"
)

// Methods lists every speed method.
var Methods = []string{MethodFastForward, MethodSlowMotion, MethodRewind}

// Register adds the speed handlers to t.
func Register(t *handler.Table) {
	t.MustRegister(MethodFastForward, FastForward)
	t.MustRegister(MethodSlowMotion, SlowMotion)
	t.MustRegister(MethodRewind, Rewind)
}

// FastForward toggles fast-forward.
//
// Params:
//   - enabled (bool, optional): target state; toggles when absent.
//
// Returns the resulting state.
func FastForward(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	return toggle(op, ctx, host.SpeedController.ToggleFastForward)
}

// SlowMotion toggles slow motion. Params as FastForward.
func SlowMotion(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	return toggle(op, ctx, host.SpeedController.ToggleSlowMotion)
}

// Rewind toggles rewind. Params as FastForward.
func Rewind(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	return toggle(op, ctx, host.SpeedController.ToggleRewind)
}

func toggle(op handler.Operation, ctx *execctx.ExecutionContext, fn func(host.SpeedController, *bool) bool) (any, error) {
	sc, ok := execctx.Capability[host.SpeedController](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "SpeedController"}, nil
	}
	enabled, err := op.OptionalBool("enabled")
	if err != nil {
		return nil, err
	}
	return fn(sc, enabled), nil
}

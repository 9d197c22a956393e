// Package input provides the handler that simulates controller input.
package input

import (
	"github.com/dshills/emuctl/internal/dispatcher/execctx"
	"github.com/dshills/emuctl/internal/dispatcher/handler"
	"github.com/dshills/emuctl/internal/host"
	inputstate "github.com/dshills/emuctl/internal/input"
)

// MethodSimulate presses, releases or deflects a controller button.
const MethodSimulate = "input.simulate"

// Methods lists every input method.
var Methods = []string{MethodSimulate}

// Register adds the input handlers to t.
func Register(t *handler.Table) {
	t.MustRegister(MethodSimulate, Simulate)
}

// Simulate sends a button value to the host.
//
// Params:
//   - player (int, optional, default 0): player index 0-3.
//   - index (int, required): button code; 16-23 are analog axes.
//   - value (int, optional): explicit value, 0..0x7fff.
//   - state (string, optional): "pressed", "released" or "analog"; used
//     to derive the value when value is absent.
//
// Returns the value sent.
func Simulate(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	sim, ok := execctx.Capability[host.InputSimulator](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "InputSimulator"}, nil
	}

	player, err := op.IntInRange("player", 0, 0, inputstate.MaxPlayers-1)
	if err != nil {
		return nil, err
	}
	button, err := op.RequireInt("index")
	if err != nil {
		return nil, err
	}

	var value int
	if op.Has("value") {
		if value, err = op.IntInRange("value", 0, 0, inputstate.MaxAxis); err != nil {
			return nil, err
		}
	} else {
		state, err := op.String("state", "")
		if err != nil {
			return nil, err
		}
		value = ctx.ValueFromState(state, button)
	}

	sim.SimulateInput(player, button, value)
	return value, nil
}

// Package state provides handlers for save-state commands.
//
// The state buffer is opaque: handlers move it between the caller and the
// host without looking inside.
package state

import (
	"github.com/dshills/emuctl/internal/dispatcher/execctx"
	"github.com/dshills/emuctl/internal/dispatcher/handler"
	"github.com/dshills/emuctl/internal/host"
)

// Method names for save-state operations.
const (
	MethodQuickSave = "state.quickSave" // save to a numbered slot
	MethodQuickLoad = "state.quickLoad" // load from a numbered slot
	MethodSave      = "state.save"      // return the state buffer
	MethodLoad      = "state.load"      // restore from a state buffer
)

// DefaultSlot is used when no slot param is given.
const DefaultSlot = 1

// Methods lists every state method.
var Methods = []string{MethodQuickSave, MethodQuickLoad, MethodSave, MethodLoad}

// Register adds the state handlers to t.
func Register(t *handler.Table) {
	t.MustRegister(MethodQuickSave, QuickSave)
	t.MustRegister(MethodQuickLoad, QuickLoad)
	t.MustRegister(MethodSave, Save)
	t.MustRegister(MethodLoad, Load)
}

// QuickSave saves to a slot.
//
// Params:
//   - slot (int, optional, default 1): slot number, 0 or greater.
func QuickSave(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	sm, ok := execctx.Capability[host.StateManager](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "StateManager"}, nil
	}
	slot, err := slotParam(op)
	if err != nil {
		return nil, err
	}
	return nil, sm.QuickSave(slot)
}

// QuickLoad loads from a slot.
//
// Params:
//   - slot (int, optional, default 1): slot number, 0 or greater.
func QuickLoad(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	sm, ok := execctx.Capability[host.StateManager](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "StateManager"}, nil
	}
	slot, err := slotParam(op)
	if err != nil {
		return nil, err
	}
	return nil, sm.QuickLoad(slot)
}

// Save returns the current state buffer ([]byte). No params.
func Save(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	sm, ok := execctx.Capability[host.StateManager](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "StateManager"}, nil
	}
	return sm.GetState()
}

// Load restores a state buffer.
//
// Params:
//   - state ([]byte or base64 string, required): buffer from state.save.
func Load(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	sm, ok := execctx.Capability[host.StateManager](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "StateManager"}, nil
	}
	data, err := op.Bytes("state")
	if err != nil {
		return nil, err
	}
	return nil, sm.LoadState(data)
}

func slotParam(op handler.Operation) (int, error) {
	return op.IntInRange("slot", DefaultSlot, 0, 1<<16)
}

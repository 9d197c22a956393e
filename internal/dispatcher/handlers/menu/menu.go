// Package menu provides handlers for the host menu and controller binding
// commands.
package menu

import (
	"github.com/dshills/emuctl/internal/dispatcher/execctx"
	"github.com/dshills/emuctl/internal/dispatcher/handler"
	"github.com/dshills/emuctl/internal/host"
	"github.com/dshills/emuctl/internal/input"
)

// Method names for menu operations.
const (
	MethodOpen               = "menu.open"
	MethodClose              = "menu.close"
	MethodControlReset       = "menu.controlReset"       // restore default bindings
	MethodControlClear       = "menu.controlClear"       // remove all bindings
	MethodControlClose       = "menu.controlClose"       // dismiss control settings
	MethodControlSetKeyboard = "menu.controlSetKeyboard" // bind a key to a button
	MethodControlSetGamepad  = "menu.controlSetGamepad"  // bind a gamepad input to a button
)

// Methods lists every menu method.
var Methods = []string{
	MethodOpen, MethodClose,
	MethodControlReset, MethodControlClear, MethodControlClose,
	MethodControlSetKeyboard, MethodControlSetGamepad,
}

// Register adds the menu handlers to t.
func Register(t *handler.Table) {
	t.MustRegister(MethodOpen, Open)
	t.MustRegister(MethodClose, Close)
	t.MustRegister(MethodControlReset, ControlReset)
	t.MustRegister(MethodControlClear, ControlClear)
	t.MustRegister(MethodControlClose, ControlClose)
	t.MustRegister(MethodControlSetKeyboard, ControlSetKeyboard)
	t.MustRegister(MethodControlSetGamepad, ControlSetGamepad)
}

// Open opens the menu. No params.
func Open(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	m, ok := execctx.Capability[host.Menu](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "Menu"}, nil
	}
	m.OpenMenu()
	return nil, nil
}

// Close closes the menu. No params.
func Close(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	m, ok := execctx.Capability[host.Menu](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "Menu"}, nil
	}
	m.CloseMenu()
	return nil, nil
}

// ControlReset restores default bindings. No params.
func ControlReset(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	cc, ok := execctx.Capability[host.ControlConfigurator](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "ControlConfigurator"}, nil
	}
	cc.ResetControls()
	return nil, nil
}

// ControlClear removes all bindings. No params.
func ControlClear(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	cc, ok := execctx.Capability[host.ControlConfigurator](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "ControlConfigurator"}, nil
	}
	cc.ClearControls()
	return nil, nil
}

// ControlClose dismisses the control settings. No params.
func ControlClose(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	cc, ok := execctx.Capability[host.ControlConfigurator](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "ControlConfigurator"}, nil
	}
	cc.CloseControls()
	return nil, nil
}

// ControlSetKeyboard binds a keyboard key.
//
// Params:
//   - player (int, optional, default 0): player index 0-3.
//   - index (int, required): button code.
//   - key (string, required): key name.
//   - label (string, optional): display label.
func ControlSetKeyboard(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	cc, ok := execctx.Capability[host.ControlConfigurator](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "ControlConfigurator"}, nil
	}
	b, err := parseBinding(op, "key")
	if err != nil {
		return nil, err
	}
	return nil, cc.SetKeyboardBinding(b.player, b.button, b.value, b.label)
}

// ControlSetGamepad binds a gamepad input.
//
// Params:
//   - player (int, optional, default 0): player index 0-3.
//   - index (int, required): button code.
//   - button (string, required): gamepad input name.
//   - label (string, optional): display label.
func ControlSetGamepad(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	cc, ok := execctx.Capability[host.ControlConfigurator](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "ControlConfigurator"}, nil
	}
	b, err := parseBinding(op, "button")
	if err != nil {
		return nil, err
	}
	return nil, cc.SetGamepadBinding(b.player, b.button, b.value, b.label)
}

type binding struct {
	player int
	button int
	value  string
	label  string
}

func parseBinding(op handler.Operation, valueParam string) (binding, error) {
	var b binding
	var err error

	if b.player, err = op.IntInRange("player", 0, 0, input.MaxPlayers-1); err != nil {
		return b, err
	}
	if b.button, err = op.RequireInt("index"); err != nil {
		return b, err
	}
	if b.button < 0 {
		return b, &handler.ParamError{Method: op.Method, Param: "index", Reason: "must not be negative"}
	}
	if b.value, err = op.RequireString(valueParam); err != nil {
		return b, err
	}
	if b.label, err = op.String("label", ""); err != nil {
		return b, err
	}
	return b, nil
}

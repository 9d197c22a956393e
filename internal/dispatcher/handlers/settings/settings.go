// Package settings provides the handler for changing emulator settings.
package settings

import (
	"github.com/dshills/emuctl/internal/dispatcher/execctx"
	"github.com/dshills/emuctl/internal/dispatcher/handler"
	"github.com/dshills/emuctl/internal/host"
)

// MethodChange changes a single emulator setting.
const MethodChange = "settings.change"

// Methods lists every settings method.
var Methods = []string{MethodChange}

// Register adds the settings handlers to t.
func Register(t *handler.Table) {
	t.MustRegister(MethodChange, Change)
}

// Change changes one setting.
//
// Params:
//   - setting (string, required): setting name.
//   - value (any): new value, passed to the host unchanged.
func Change(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	s, ok := execctx.Capability[host.Settings](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "Settings"}, nil
	}
	name, err := op.RequireString("setting")
	if err != nil {
		return nil, err
	}
	value, _ := op.Value("value")
	return nil, s.ChangeSetting(name, value)
}

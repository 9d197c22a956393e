package script

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/emuctl/internal/dispatcher/execctx"
	"github.com/dshills/emuctl/internal/dispatcher/handler"
	"github.com/dshills/emuctl/internal/logging"
)

// Overrides is a Lua state whose functions serve as command handlers.
//
// An override script returns a table keyed by method name:
//
//	return {
//	    ["control.mute"] = false,          -- remove the method
//	    ["custom.hello"] = function(params, op)
//	        emu.log("hello from " .. op.method)
//	        return "hi " .. (params.name or "there")
//	    end,
//	}
//
// A function returning (nil, message) fails with message.
type Overrides struct {
	state  *State
	logger *logging.Logger
}

// NewOverrides creates an override engine.
func NewOverrides(logger *logging.Logger, opts ...StateOption) *Overrides {
	logger = logger.WithComponent("lua")
	o := &Overrides{state: NewState(opts...), logger: logger}
	installAPI(o.state, nil, logger)
	return o
}

// LoadFile evaluates the override script at path.
func (o *Overrides) LoadFile(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening overrides: %w", err)
	}
	defer f.Close()
	return o.Load(path, f)
}

// LoadString evaluates an override script held in memory.
func (o *Overrides) LoadString(name, code string) (map[string]any, error) {
	return o.Load(name, strings.NewReader(code))
}

// Load evaluates an override script and converts its table into an override
// map for handler.Merge. Functions become handlers, false stays false, other
// values are passed through so the merge can reject them.
func (o *Overrides) Load(name string, r io.Reader) (map[string]any, error) {
	ret, err := o.state.Eval(name, r)
	if err != nil {
		return nil, err
	}
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%s: %w (got %s)", name, ErrNotTable, ret.Type())
	}

	overrides := make(map[string]any)
	var keyErr error
	tbl.ForEach(func(k, v lua.LValue) {
		method, ok := k.(lua.LString)
		if !ok {
			if keyErr == nil {
				keyErr = fmt.Errorf("%s: override keys must be method names, got %s", name, k.Type())
			}
			return
		}

		switch val := v.(type) {
		case *lua.LFunction:
			overrides[string(method)] = o.wrap(string(method), val)
		default:
			overrides[string(method)] = o.state.Bridge().ToGoValue(val)
		}
	})
	if keyErr != nil {
		return nil, keyErr
	}

	o.logger.Debug("loaded %d overrides from %s", len(overrides), name)
	return overrides, nil
}

func (o *Overrides) wrap(method string, fn *lua.LFunction) handler.Handler {
	return func(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
		info := map[string]any{
			"id":     op.ID,
			"method": op.Method,
		}
		results, err := o.state.Call(fn, op.Params, info)
		if err != nil {
			return nil, fmt.Errorf("lua %s: %w", method, err)
		}
		return handlerResult(method, results)
	}
}

func handlerResult(method string, results []any) (any, error) {
	if len(results) == 0 {
		return nil, nil
	}
	if len(results) > 1 && results[0] == nil {
		if msg, ok := results[1].(string); ok && msg != "" {
			return nil, fmt.Errorf("lua %s: %w", method, errors.New(msg))
		}
	}
	return results[0], nil
}

// Close releases the Lua state. Handlers fail with ErrStateClosed
// afterwards.
func (o *Overrides) Close() error {
	return o.state.Close()
}

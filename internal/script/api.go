package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/emuctl/internal/input"
	"github.com/dshills/emuctl/internal/logging"
)

// ModuleName is the global table scripts use to reach emuctl.
const ModuleName = "emu"

// Executor runs named methods.
type Executor interface {
	Exec(method string, params map[string]any) (any, error)
}

// methodLister is implemented by executors that can enumerate methods.
type methodLister interface {
	Methods() []string
}

// installAPI registers the emu module. exec and methods are only available
// when ex is non-nil.
func installAPI(s *State, ex Executor, logger *logging.Logger) {
	b := s.Bridge()

	funcs := map[string]lua.LGFunction{
		"log": func(L *lua.LState) int {
			level, msg := "info", L.CheckString(1)
			if L.GetTop() >= 2 {
				level, msg = msg, L.CheckString(2)
			}
			switch logging.ParseLevel(level) {
			case logging.LevelDebug:
				logger.Debug("%s", msg)
			case logging.LevelWarn:
				logger.Warn("%s", msg)
			case logging.LevelError:
				logger.Error("%s", msg)
			default:
				logger.Info("%s", msg)
			}
			return 0
		},
		"valueFromState": func(L *lua.LState) int {
			state := L.CheckString(1)
			button := L.CheckInt(2)
			L.Push(lua.LNumber(input.ValueFromState(state, button)))
			return 1
		},
	}

	if ex != nil {
		funcs["exec"] = func(L *lua.LState) int {
			method := L.CheckString(1)

			var params map[string]any
			if L.GetTop() >= 2 && L.Get(2) != lua.LNil {
				tbl := L.CheckTable(2)
				// An empty table converts to an empty map.
				if m, ok := b.ToGoValue(tbl).(map[string]any); ok {
					params = m
				} else if tbl.Len() > 0 {
					L.ArgError(2, "params must be a table with string keys")
					return 0
				}
			}

			result, err := ex.Exec(method, params)
			if err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(err.Error()))
				return 2
			}
			L.Push(b.ToLuaValue(result))
			return 1
		}

		funcs["methods"] = func(L *lua.LState) int {
			var methods []string
			if l, ok := ex.(methodLister); ok {
				methods = l.Methods()
			}
			L.Push(b.ToLuaValue(methods))
			return 1
		}
	}

	s.RegisterModule(ModuleName, funcs)
}

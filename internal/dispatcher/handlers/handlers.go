// Package handlers assembles the default command set.
package handlers

import (
	"github.com/dshills/emuctl/internal/dispatcher/handler"
	"github.com/dshills/emuctl/internal/dispatcher/handlers/cheat"
	"github.com/dshills/emuctl/internal/dispatcher/handlers/control"
	"github.com/dshills/emuctl/internal/dispatcher/handlers/input"
	"github.com/dshills/emuctl/internal/dispatcher/handlers/menu"
	"github.com/dshills/emuctl/internal/dispatcher/handlers/settings"
	"github.com/dshills/emuctl/internal/dispatcher/handlers/speed"
	"github.com/dshills/emuctl/internal/dispatcher/handlers/state"
)

// Defaults returns a new, unsealed table holding every default command.
func Defaults() *handler.Table {
	t := handler.NewTable()
	input.Register(t)
	control.Register(t)
	settings.Register(t)
	state.Register(t)
	speed.Register(t)
	cheat.Register(t)
	menu.Register(t)
	return t
}

// Methods returns the names of every default command.
func Methods() []string {
	var all []string
	for _, group := range [][]string{
		input.Methods, control.Methods, settings.Methods, state.Methods,
		speed.Methods, cheat.Methods, menu.Methods,
	} {
		all = append(all, group...)
	}
	return all
}

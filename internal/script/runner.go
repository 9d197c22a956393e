package script

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/emuctl/internal/logging"
)

// Runner executes automation scripts against an Executor. Each run gets a
// fresh sandboxed state with the emu module:
//
//	emu.exec(method [, params])  -> result | nil, message
//	emu.methods()                -> { method, ... }
//	emu.log([level,] message)
//	emu.valueFromState(state, button) -> value
type Runner struct {
	ex     Executor
	logger *logging.Logger
	opts   []StateOption
}

// NewRunner creates a script runner.
func NewRunner(ex Executor, logger *logging.Logger, opts ...StateOption) *Runner {
	return &Runner{ex: ex, logger: logger.WithComponent("lua"), opts: opts}
}

// RunFile runs the script at path.
func (r *Runner) RunFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening script: %w", err)
	}
	defer f.Close()
	return r.Run(filepath.Base(path), f)
}

// RunString runs a script held in memory.
func (r *Runner) RunString(name, code string) error {
	return r.Run(name, strings.NewReader(code))
}

// Run runs a script read from src.
func (r *Runner) Run(name string, src io.Reader) error {
	state := NewState(r.opts...)
	defer state.Close()

	logger := r.logger.WithField("script", name)
	installAPI(state, r.ex, logger)

	logger.Debug("running")
	if _, err := state.Eval(name, src); err != nil {
		return fmt.Errorf("script %s: %w", name, err)
	}
	return nil
}

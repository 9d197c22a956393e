// Package autostart runs a fixed list of commands once at startup.
package autostart

import (
	"errors"
	"fmt"

	"github.com/dshills/emuctl/internal/logging"
)

// Entry is one startup command.
type Entry struct {
	Method string         `toml:"method"`
	Params map[string]any `toml:"params"`
}

// Executor runs named methods. *dispatcher.Dispatcher satisfies it.
type Executor interface {
	Exec(method string, params map[string]any) (any, error)
}

// Outcome records what happened to one entry.
type Outcome struct {
	Index   int
	Method  string
	Result  any
	Err     error
	Skipped bool
}

// Report is the per-entry result of a run, in entry order.
type Report struct {
	Outcomes []Outcome
}

// Ran returns the number of entries that were executed.
func (r Report) Ran() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Skipped {
			n++
		}
	}
	return n
}

// Failed returns the outcomes whose execution returned an error.
func (r Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err joins every entry error, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", o.Method, o.Err))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%d autostart commands failed: %w", len(errs), errors.Join(errs...))
}

// Run executes entries in order. Entries without a method are skipped and
// errors are logged; a failing entry never stops the ones after it.
func Run(ex Executor, entries []Entry, logger *logging.Logger) {
	RunWithReport(ex, entries, logger)
}

// RunWithReport is Run returning the outcome of every entry.
func RunWithReport(ex Executor, entries []Entry, logger *logging.Logger) Report {
	logger = logger.WithComponent("autostart")
	report := Report{Outcomes: make([]Outcome, 0, len(entries))}

	for i, entry := range entries {
		outcome := Outcome{Index: i, Method: entry.Method}

		if entry.Method == "" {
			logger.Debug("skipping entry %d: no method", i)
			outcome.Skipped = true
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		outcome.Result, outcome.Err = ex.Exec(entry.Method, entry.Params)
		if outcome.Err != nil {
			logger.Error("autostart %s failed: %v", entry.Method, outcome.Err)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	return report
}

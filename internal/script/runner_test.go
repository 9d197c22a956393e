package script_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/emuctl/internal/dispatcher"
	"github.com/dshills/emuctl/internal/host/sim"
	"github.com/dshills/emuctl/internal/logging"
	"github.com/dshills/emuctl/internal/script"
)

func TestRunnerExec(t *testing.T) {
	s := sim.New(nil)
	d := dispatcher.NewStrict(s, dispatcher.Options{})
	r := script.NewRunner(d, nil)

	err := r.RunString("macro.lua", `
		assert(emu.exec("control.pause") == nil)
		emu.exec("state.quickSave", {slot = 2})
		emu.exec("input.simulate", {player = 1, index = 3, state = "pressed"})
	`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}

	if !s.Paused() {
		t.Error("host should be paused")
	}
	if got := s.Input(1, 3); got != 1 {
		t.Errorf("Input(1, 3) = %d, want 1", got)
	}
	if diff := cmp.Diff([]string{"Pause", "QuickSave", "SimulateInput"}, s.CallNames()); diff != "" {
		t.Errorf("host calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRunnerExecError(t *testing.T) {
	d := dispatcher.NewStrict(sim.New(nil), dispatcher.Options{})
	r := script.NewRunner(d, nil)

	err := r.RunString("errors.lua", `
		local result, err = emu.exec("unknown.x")
		assert(result == nil, "result should be nil")
		assert(string.find(err, "unknown method"), "unexpected error: " .. tostring(err))
	`)
	if err != nil {
		t.Errorf("RunString: %v", err)
	}
}

func TestRunnerResults(t *testing.T) {
	d := dispatcher.NewStrict(struct{}{}, dispatcher.Options{})
	r := script.NewRunner(d, nil)

	err := r.RunString("absent.lua", `
		local result = emu.exec("control.mute")
		assert(result.method == "control.mute", "method")
		assert(result.capability == "Audio", "capability")
	`)
	if err != nil {
		t.Errorf("RunString: %v", err)
	}
}

func TestRunnerMethods(t *testing.T) {
	d := dispatcher.New(sim.New(nil), dispatcher.Options{})
	r := script.NewRunner(dispatcher.NewSerial(d), nil)

	err := r.RunString("methods.lua", `
		local found = false
		for _, m in ipairs(emu.methods()) do
			if m == "control.pause" then found = true end
		end
		assert(found, "control.pause not listed")
	`)
	if err != nil {
		t.Errorf("RunString: %v", err)
	}
}

func TestRunnerLog(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelDebug, Output: &buf})
	r := script.NewRunner(dispatcher.New(sim.New(nil), dispatcher.Options{}), logger)

	if err := r.RunString("log.lua", `emu.log("warn", "careful") emu.log("plain")`); err != nil {
		t.Fatalf("RunString: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[WARN]") || !strings.Contains(out, "careful") {
		t.Errorf("expected warning, got %q", out)
	}
	if !strings.Contains(out, "[INFO]") || !strings.Contains(out, "script=log.lua") {
		t.Errorf("expected info line with script field, got %q", out)
	}
}

func TestRunnerScriptError(t *testing.T) {
	r := script.NewRunner(dispatcher.New(sim.New(nil), dispatcher.Options{}), nil)

	if err := r.RunString("bad.lua", `error("broken")`); err == nil || !strings.Contains(err.Error(), "bad.lua") {
		t.Errorf("expected error naming the script, got %v", err)
	}
}

func TestRunnerIsolation(t *testing.T) {
	r := script.NewRunner(dispatcher.New(sim.New(nil), dispatcher.Options{}), nil)

	if err := r.RunString("first.lua", `leaked = 1`); err != nil {
		t.Fatal(err)
	}
	if err := r.RunString("second.lua", `assert(leaked == nil, "globals leaked between runs")`); err != nil {
		t.Error(err)
	}
}

func TestRunnerRunFile(t *testing.T) {
	s := sim.New(nil)
	path := filepath.Join(t.TempDir(), "mute.lua")
	if err := os.WriteFile(path, []byte(`emu.exec("control.mute")`), 0o644); err != nil {
		t.Fatal(err)
	}

	r := script.NewRunner(dispatcher.New(s, dispatcher.Options{}), nil)
	if err := r.RunFile(path); err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	if !s.Muted() {
		t.Error("host should be muted")
	}
}

package script_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/emuctl/internal/dispatcher"
	"github.com/dshills/emuctl/internal/dispatcher/handler"
	"github.com/dshills/emuctl/internal/dispatcher/handlers/control"
	"github.com/dshills/emuctl/internal/host/sim"
	"github.com/dshills/emuctl/internal/script"
)

const overrideScript = `
return {
	["control.mute"] = false,
	["custom.hello"] = function(params, op)
		return "hi " .. (params.name or "there") .. " via " .. op.method
	end,
	["custom.fail"] = function(params)
		return nil, "not today"
	end,
	["custom.raise"] = function(params)
		error("exploded")
	end,
	["custom.value"] = function(params)
		return emu.valueFromState("pressed", params.button)
	end,
	["control.pause"] = "not a handler",
}
`

func TestLoadOverrides(t *testing.T) {
	o := script.NewOverrides(nil)
	defer o.Close()

	overrides, err := o.LoadString("overrides.lua", overrideScript)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}

	if overrides["control.mute"] != false {
		t.Errorf("control.mute = %v, want false", overrides["control.mute"])
	}
	if _, ok := handler.AsHandler(overrides["custom.hello"]); !ok {
		t.Errorf("custom.hello should be a handler, got %T", overrides["custom.hello"])
	}
	if overrides["control.pause"] != "not a handler" {
		t.Errorf("non-function values should pass through, got %v", overrides["control.pause"])
	}
}

func newDispatcher(t *testing.T, strict bool) (*dispatcher.Dispatcher, *sim.Host) {
	t.Helper()

	o := script.NewOverrides(nil)
	t.Cleanup(func() { o.Close() })

	overrides, err := o.LoadString("overrides.lua", overrideScript)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}

	s := sim.New(nil)
	opts := dispatcher.Options{Commands: overrides}
	if strict {
		return dispatcher.NewStrict(s, opts), s
	}
	return dispatcher.New(s, opts), s
}

func TestOverridesThroughDispatcher(t *testing.T) {
	d, s := newDispatcher(t, true)

	result, err := d.Exec("custom.hello", map[string]any{"name": "bob"})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if result != "hi bob via custom.hello" {
		t.Errorf("result = %v", result)
	}

	if d.Has(control.MethodMute) {
		t.Error("control.mute should be removed")
	}

	// The invalid override keeps the default.
	if _, err := d.Exec(control.MethodPause, nil); err != nil {
		t.Fatalf("Exec pause: %v", err)
	}
	if !s.Paused() {
		t.Error("default pause handler should run")
	}

	result, err = d.Exec("custom.value", map[string]any{"button": 17})
	if err != nil {
		t.Fatalf("Exec value: %v", err)
	}
	if result != int64(0x7fff) {
		t.Errorf("custom.value = %v (%T)", result, result)
	}
}

func TestOverrideFailures(t *testing.T) {
	d, _ := newDispatcher(t, true)

	tests := []struct {
		method string
		want   string
	}{
		{"custom.fail", "not today"},
		{"custom.raise", "exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			_, err := d.Exec(tt.method, nil)
			if !errors.Is(err, dispatcher.ErrOperationFailed) {
				t.Fatalf("expected operation failure, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

func TestOverrideFailurePermissive(t *testing.T) {
	d, _ := newDispatcher(t, false)

	result, err := d.Exec("custom.fail", nil)
	if result != nil || err != nil {
		t.Errorf("Exec = (%v, %v), want (nil, nil)", result, err)
	}
}

func TestLoadOverridesErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"not a table", `return 42`, script.ErrNotTable},
		{"no return", `x = 1`, script.ErrNotTable},
		{"syntax", `return {`, nil},
		{"numeric keys", `return { function() end }`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := script.NewOverrides(nil)
			defer o.Close()

			_, err := o.LoadString(tt.name, tt.code)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.lua")
	if err := os.WriteFile(path, []byte(overrideScript), 0o644); err != nil {
		t.Fatal(err)
	}

	o := script.NewOverrides(nil)
	defer o.Close()

	overrides, err := o.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(overrides) != 6 {
		t.Errorf("expected 6 overrides, got %d", len(overrides))
	}

	if _, err := o.LoadFile(filepath.Join(t.TempDir(), "missing.lua")); err == nil {
		t.Error("expected error for missing file")
	}
}

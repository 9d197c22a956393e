// Package control provides handlers for emulation run control, display and
// audio commands.
package control

import (
	"github.com/dshills/emuctl/internal/dispatcher/execctx"
	"github.com/dshills/emuctl/internal/dispatcher/handler"
	"github.com/dshills/emuctl/internal/host"
)

// Method names for control operations.
const (
	MethodPause      = "control.pause"      // pause emulation
	MethodPlay       = "control.play"       // resume emulation
	MethodRestart    = "control.restart"    // restart the loaded game
	MethodFullscreen = "control.fullscreen" // enter, leave or toggle fullscreen
	MethodMute       = "control.mute"       // mute audio
	MethodUnmute     = "control.unmute"     // unmute audio
	MethodScreenshot = "control.screenshot" // capture the current frame
)

// Methods lists every control method.
var Methods = []string{
	MethodPause, MethodPlay, MethodRestart, MethodFullscreen,
	MethodMute, MethodUnmute, MethodScreenshot,
}

// Register adds the control handlers to t.
func Register(t *handler.Table) {
	t.MustRegister(MethodPause, Pause)
	t.MustRegister(MethodPlay, Play)
	t.MustRegister(MethodRestart, Restart)
	t.MustRegister(MethodFullscreen, Fullscreen)
	t.MustRegister(MethodMute, Mute)
	t.MustRegister(MethodUnmute, Unmute)
	t.MustRegister(MethodScreenshot, Screenshot)
}

// Pause pauses emulation. No params.
func Pause(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	r, ok := execctx.Capability[host.Runner](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "Runner"}, nil
	}
	r.Pause()
	return nil, nil
}

// Play resumes emulation. No params.
func Play(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	r, ok := execctx.Capability[host.Runner](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "Runner"}, nil
	}
	r.Play()
	return nil, nil
}

// Restart restarts the loaded game. No params.
func Restart(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	r, ok := execctx.Capability[host.Runner](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "Runner"}, nil
	}
	r.Restart()
	return nil, nil
}

// Fullscreen sets fullscreen.
//
// Params:
//   - enabled (bool, optional): target state; toggles when absent.
//
// Returns the resulting fullscreen state.
func Fullscreen(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	d, ok := execctx.Capability[host.Display](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "Display"}, nil
	}
	enabled, err := op.OptionalBool("enabled")
	if err != nil {
		return nil, err
	}
	if enabled == nil {
		return d.ToggleFullscreen(), nil
	}
	d.SetFullscreen(*enabled)
	return *enabled, nil
}

// Mute mutes audio. No params.
func Mute(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	return setMuted(op, ctx, true)
}

// Unmute unmutes audio. No params.
func Unmute(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	return setMuted(op, ctx, false)
}

func setMuted(op handler.Operation, ctx *execctx.ExecutionContext, muted bool) (any, error) {
	a, ok := execctx.Capability[host.Audio](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "Audio"}, nil
	}
	a.SetMuted(muted)
	return nil, nil
}

// Screenshot captures the current frame. No params.
// Returns the encoded image bytes.
func Screenshot(op handler.Operation, ctx *execctx.ExecutionContext) (any, error) {
	s, ok := execctx.Capability[host.Screenshotter](ctx)
	if !ok {
		return host.Absent{Method: op.Method, Capability: "Screenshotter"}, nil
	}
	return s.Screenshot()
}

// Package host defines the capabilities an emulation host may expose to
// command handlers.
//
// A host is any value. Handlers query it for the capability they need with a
// type assertion; a host that lacks the capability produces an Absent result
// instead of an error. The dispatcher borrows the host and never manages its
// lifecycle.
package host

import "fmt"

// Host is the borrowed application object commands are dispatched into.
// It may implement any subset of the capability interfaces below.
type Host any

// InputSimulator injects controller input for a player.
type InputSimulator interface {
	// SimulateInput sets button on player's controller to value.
	// Digital buttons use 0 or 1; analog axes use 0..0x7fff.
	SimulateInput(player, button, value int)
}

// Runner controls emulation execution.
type Runner interface {
	Pause()
	Play()
	Restart()
}

// Display controls fullscreen presentation.
type Display interface {
	// SetFullscreen enters or leaves fullscreen.
	SetFullscreen(enabled bool)
	// ToggleFullscreen flips fullscreen and returns the new state.
	ToggleFullscreen() bool
}

// Audio controls audio output.
type Audio interface {
	SetMuted(muted bool)
}

// Screenshotter captures the current frame.
type Screenshotter interface {
	// Screenshot returns the encoded image of the current frame.
	Screenshot() ([]byte, error)
}

// Settings changes emulator settings. Persistence is the host's business.
type Settings interface {
	ChangeSetting(name string, value any) error
}

// StateManager saves and restores emulator state.
type StateManager interface {
	QuickSave(slot int) error
	QuickLoad(slot int) error
	// GetState returns the opaque save-state buffer.
	GetState() ([]byte, error)
	// LoadState restores from a buffer previously returned by GetState.
	LoadState(state []byte) error
}

// SpeedController toggles emulation speed modes. A nil enabled pointer
// toggles the current state; the returned value is the new state.
type SpeedController interface {
	ToggleFastForward(enabled *bool) bool
	ToggleSlowMotion(enabled *bool) bool
	ToggleRewind(enabled *bool) bool
}

// Cheats manages cheat codes by index.
type Cheats interface {
	// SetCheat enables or disables the cheat at index. An empty code keeps the
	// code already stored at that index.
	SetCheat(index int, enabled bool, code string) error
	ResetCheats()
}

// Menu opens and closes the host's menu.
type Menu interface {
	OpenMenu()
	CloseMenu()
}

// ControlConfigurator edits controller bindings.
type ControlConfigurator interface {
	// ResetControls restores the default bindings for all players.
	ResetControls()
	// ClearControls removes every binding.
	ClearControls()
	// CloseControls dismisses the control settings view.
	CloseControls()
	// SetKeyboardBinding maps a keyboard key to player's button.
	SetKeyboardBinding(player, button int, key, label string) error
	// SetGamepadBinding maps a gamepad input to player's button.
	SetGamepadBinding(player, button int, input, label string) error
}

// Absent is the result of a command whose host lacks the capability it needs.
type Absent struct {
	// Method is the command that was executed.
	Method string `json:"method"`
	// Capability names the missing interface.
	Capability string `json:"capability"`
}

// String implements fmt.Stringer.
func (a Absent) String() string {
	return fmt.Sprintf("%s: host does not implement %s", a.Method, a.Capability)
}

// IsAbsent reports whether v is an Absent result.
func IsAbsent(v any) bool {
	_, ok := v.(Absent)
	return ok
}

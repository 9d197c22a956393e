// Package sim provides an in-memory emulation host that implements every
// host capability and records the calls it receives.
//
// It stands in for a real emulator when emuctl runs standalone and backs the
// tests of packages that dispatch into a host.
package sim

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"
	"sync"

	"github.com/dshills/emuctl/internal/logging"
)

// Errors returned by the simulated host.
var (
	// ErrEmptySlot indicates a quick load from a slot that was never saved.
	ErrEmptySlot = errors.New("sim: save slot is empty")

	// ErrBadState indicates a state buffer that was not produced by GetState.
	ErrBadState = errors.New("sim: invalid state buffer")

	// ErrUnknownCheat indicates enabling a cheat index with no stored code.
	ErrUnknownCheat = errors.New("sim: no code stored for cheat")
)

// Call records one capability invocation.
type Call struct {
	Name string
	Args []any
}

// Cheat is a stored cheat code.
type Cheat struct {
	Code    string `json:"code"`
	Enabled bool   `json:"enabled"`
}

// Binding is a controller binding for one player button.
type Binding struct {
	Keyboard      string `json:"keyboard,omitempty"`
	KeyboardLabel string `json:"keyboardLabel,omitempty"`
	Gamepad       string `json:"gamepad,omitempty"`
	GamepadLabel  string `json:"gamepadLabel,omitempty"`
}

// ButtonKey addresses a button on a player's controller.
type ButtonKey struct {
	Player int `json:"player"`
	Button int `json:"button"`
}

// snapshot is the part of the host captured by GetState.
type snapshot struct {
	Frame    uint64         `json:"frame"`
	Paused   bool           `json:"paused"`
	Settings map[string]any `json:"settings"`
}

// Host is a simulated emulator. All methods are safe for concurrent use.
type Host struct {
	mu     sync.Mutex
	logger *logging.Logger
	calls  []Call

	frame      uint64
	paused     bool
	muted      bool
	fullscreen bool

	fastForward bool
	slowMotion  bool
	rewind      bool

	menuOpen     bool
	controlsOpen bool

	inputs   map[ButtonKey]int
	settings map[string]any
	slots    map[int][]byte
	cheats   map[int]Cheat
	bindings map[ButtonKey]Binding
}

// New creates a simulated host with default controller bindings.
func New(logger *logging.Logger) *Host {
	h := &Host{
		logger:   logger,
		inputs:   make(map[ButtonKey]int),
		settings: make(map[string]any),
		slots:    make(map[int][]byte),
		cheats:   make(map[int]Cheat),
	}
	h.bindings = defaultBindings()
	return h
}

func defaultBindings() map[ButtonKey]Binding {
	return map[ButtonKey]Binding{
		{Player: 0, Button: 0}: {Keyboard: "x", Gamepad: "BUTTON_2"},
		{Player: 0, Button: 1}: {Keyboard: "s", Gamepad: "BUTTON_4"},
		{Player: 0, Button: 8}: {Keyboard: "z", Gamepad: "BUTTON_1"},
		{Player: 0, Button: 9}: {Keyboard: "a", Gamepad: "BUTTON_3"},
		{Player: 0, Button: 2}: {Keyboard: "v", Gamepad: "SELECT"},
		{Player: 0, Button: 3}: {Keyboard: "Enter", Gamepad: "START"},
		{Player: 0, Button: 4}: {Keyboard: "Up", Gamepad: "DPAD_UP"},
		{Player: 0, Button: 5}: {Keyboard: "Down", Gamepad: "DPAD_DOWN"},
		{Player: 0, Button: 6}: {Keyboard: "Left", Gamepad: "DPAD_LEFT"},
		{Player: 0, Button: 7}: {Keyboard: "Right", Gamepad: "DPAD_RIGHT"},
	}
}

// record must be called with h.mu held.
func (h *Host) record(name string, args ...any) {
	h.calls = append(h.calls, Call{Name: name, Args: args})
	h.logger.Debug("host %s %v", name, args)
}

// Calls returns a copy of the recorded calls.
func (h *Host) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Call, len(h.calls))
	copy(out, h.calls)
	return out
}

// CallNames returns the names of the recorded calls in order.
func (h *Host) CallNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, len(h.calls))
	for i, c := range h.calls {
		names[i] = c.Name
	}
	return names
}

// ResetCalls clears the recorded calls.
func (h *Host) ResetCalls() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
}

// Step advances the emulated frame counter unless paused.
func (h *Host) Step() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.paused {
		h.frame++
	}
}

// SimulateInput implements host.InputSimulator.
func (h *Host) SimulateInput(player, button, value int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SimulateInput", player, button, value)
	h.inputs[ButtonKey{Player: player, Button: button}] = value
}

// Input returns the last value simulated for a button.
func (h *Host) Input(player, button int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inputs[ButtonKey{Player: player, Button: button}]
}

// Pause implements host.Runner.
func (h *Host) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("Pause")
	h.paused = true
}

// Play implements host.Runner.
func (h *Host) Play() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("Play")
	h.paused = false
}

// Restart implements host.Runner.
func (h *Host) Restart() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("Restart")
	h.frame = 0
	h.inputs = make(map[ButtonKey]int)
}

// Paused reports whether emulation is paused.
func (h *Host) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// Frame returns the emulated frame counter.
func (h *Host) Frame() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame
}

// SetFullscreen implements host.Display.
func (h *Host) SetFullscreen(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SetFullscreen", enabled)
	h.fullscreen = enabled
}

// ToggleFullscreen implements host.Display.
func (h *Host) ToggleFullscreen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ToggleFullscreen")
	h.fullscreen = !h.fullscreen
	return h.fullscreen
}

// Fullscreen reports the fullscreen state.
func (h *Host) Fullscreen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fullscreen
}

// SetMuted implements host.Audio.
func (h *Host) SetMuted(muted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SetMuted", muted)
	h.muted = muted
}

// Muted reports whether audio is muted.
func (h *Host) Muted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.muted
}

// Screenshot implements host.Screenshotter. It renders a small PNG whose
// color encodes the current frame.
func (h *Host) Screenshot() ([]byte, error) {
	h.mu.Lock()
	h.record("Screenshot")
	frame := h.frame
	h.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	c := color.RGBA{R: uint8(frame), G: uint8(frame >> 8), B: 0x80, A: 0xff}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("sim: encoding screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

// ChangeSetting implements host.Settings.
func (h *Host) ChangeSetting(name string, value any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ChangeSetting", name, value)
	if name == "" {
		return errors.New("sim: setting name is empty")
	}
	h.settings[name] = value
	return nil
}

// Setting returns a setting value.
func (h *Host) Setting(name string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.settings[name]
	return v, ok
}

// GetState implements host.StateManager.
func (h *Host) GetState() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("GetState")
	return h.encodeState()
}

// LoadState implements host.StateManager.
func (h *Host) LoadState(state []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("LoadState", len(state))
	return h.decodeState(state)
}

// QuickSave implements host.StateManager.
func (h *Host) QuickSave(slot int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("QuickSave", slot)
	data, err := h.encodeState()
	if err != nil {
		return err
	}
	h.slots[slot] = data
	return nil
}

// QuickLoad implements host.StateManager.
func (h *Host) QuickLoad(slot int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("QuickLoad", slot)
	data, ok := h.slots[slot]
	if !ok {
		return fmt.Errorf("%w: %d", ErrEmptySlot, slot)
	}
	return h.decodeState(data)
}

func (h *Host) encodeState() ([]byte, error) {
	settings := make(map[string]any, len(h.settings))
	for k, v := range h.settings {
		settings[k] = v
	}
	return json.Marshal(snapshot{Frame: h.frame, Paused: h.paused, Settings: settings})
}

func (h *Host) decodeState(data []byte) error {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrBadState, err)
	}
	h.frame = s.Frame
	h.paused = s.Paused
	h.settings = s.Settings
	if h.settings == nil {
		h.settings = make(map[string]any)
	}
	return nil
}

// ToggleFastForward implements host.SpeedController.
func (h *Host) ToggleFastForward(enabled *bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ToggleFastForward", derefOr(enabled, nil))
	h.fastForward = toggle(h.fastForward, enabled)
	return h.fastForward
}

// ToggleSlowMotion implements host.SpeedController.
func (h *Host) ToggleSlowMotion(enabled *bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ToggleSlowMotion", derefOr(enabled, nil))
	h.slowMotion = toggle(h.slowMotion, enabled)
	return h.slowMotion
}

// ToggleRewind implements host.SpeedController.
func (h *Host) ToggleRewind(enabled *bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ToggleRewind", derefOr(enabled, nil))
	h.rewind = toggle(h.rewind, enabled)
	return h.rewind
}

// Speed returns the fast-forward, slow-motion and rewind flags.
func (h *Host) Speed() (fastForward, slowMotion, rewind bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fastForward, h.slowMotion, h.rewind
}

func toggle(current bool, enabled *bool) bool {
	if enabled == nil {
		return !current
	}
	return *enabled
}

func derefOr(b *bool, def any) any {
	if b == nil {
		return def
	}
	return *b
}

// SetCheat implements host.Cheats.
func (h *Host) SetCheat(index int, enabled bool, code string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SetCheat", index, enabled, code)

	cheat, ok := h.cheats[index]
	if code != "" {
		cheat.Code = code
	} else if !ok && enabled {
		return fmt.Errorf("%w %d", ErrUnknownCheat, index)
	}
	cheat.Enabled = enabled
	h.cheats[index] = cheat
	return nil
}

// ResetCheats implements host.Cheats.
func (h *Host) ResetCheats() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ResetCheats")
	h.cheats = make(map[int]Cheat)
}

// Cheat returns the cheat stored at index.
func (h *Host) Cheat(index int) (Cheat, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.cheats[index]
	return c, ok
}

// OpenMenu implements host.Menu.
func (h *Host) OpenMenu() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("OpenMenu")
	h.menuOpen = true
}

// CloseMenu implements host.Menu.
func (h *Host) CloseMenu() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("CloseMenu")
	h.menuOpen = false
}

// MenuOpen reports whether the menu is open.
func (h *Host) MenuOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.menuOpen
}

// ResetControls implements host.ControlConfigurator.
func (h *Host) ResetControls() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ResetControls")
	h.bindings = defaultBindings()
}

// ClearControls implements host.ControlConfigurator.
func (h *Host) ClearControls() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ClearControls")
	h.bindings = make(map[ButtonKey]Binding)
}

// CloseControls implements host.ControlConfigurator.
func (h *Host) CloseControls() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("CloseControls")
	h.controlsOpen = false
}

// SetKeyboardBinding implements host.ControlConfigurator.
func (h *Host) SetKeyboardBinding(player, button int, key, label string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SetKeyboardBinding", player, button, key, label)

	k := ButtonKey{Player: player, Button: button}
	b := h.bindings[k]
	b.Keyboard = key
	b.KeyboardLabel = label
	h.bindings[k] = b
	return nil
}

// SetGamepadBinding implements host.ControlConfigurator.
func (h *Host) SetGamepadBinding(player, button int, input, label string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SetGamepadBinding", player, button, input, label)

	k := ButtonKey{Player: player, Button: button}
	b := h.bindings[k]
	b.Gamepad = input
	b.GamepadLabel = label
	h.bindings[k] = b
	return nil
}

// Binding returns the binding for a player button.
func (h *Host) Binding(player, button int) (Binding, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.bindings[ButtonKey{Player: player, Button: button}]
	return b, ok
}

// BoundButtons returns the bound buttons sorted by player then button.
func (h *Host) BoundButtons() []ButtonKey {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]ButtonKey, 0, len(h.bindings))
	for k := range h.bindings {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Player != keys[j].Player {
			return keys[i].Player < keys[j].Player
		}
		return keys[i].Button < keys[j].Button
	})
	return keys
}

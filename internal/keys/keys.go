// Package keys is a terminal front-end that turns key presses into
// dispatched methods.
//
// Bindings map key names to method calls. Names are the rune itself for
// printable keys ("p", "1") and a fixed name for special keys ("Enter",
// "F5", "Up"). Modifiers prefix the name ("Ctrl+s", "Alt+p", "Shift+Up").
// Esc and Ctrl+c always quit.
package keys

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/emuctl/internal/config"
	"github.com/dshills/emuctl/internal/logging"
)

// Executor runs named methods.
type Executor interface {
	Exec(method string, params map[string]any) (any, error)
}

var specialNames = map[tcell.Key]string{
	tcell.KeyEnter:      "Enter",
	tcell.KeyTab:        "Tab",
	tcell.KeyBacktab:    "Backtab",
	tcell.KeyBackspace:  "Backspace",
	tcell.KeyBackspace2: "Backspace",
	tcell.KeyDelete:     "Delete",
	tcell.KeyInsert:     "Insert",
	tcell.KeyHome:       "Home",
	tcell.KeyEnd:        "End",
	tcell.KeyPgUp:       "PgUp",
	tcell.KeyPgDn:       "PgDn",
	tcell.KeyUp:         "Up",
	tcell.KeyDown:       "Down",
	tcell.KeyLeft:       "Left",
	tcell.KeyRight:      "Right",
	tcell.KeyF1:         "F1",
	tcell.KeyF2:         "F2",
	tcell.KeyF3:         "F3",
	tcell.KeyF4:         "F4",
	tcell.KeyF5:         "F5",
	tcell.KeyF6:         "F6",
	tcell.KeyF7:         "F7",
	tcell.KeyF8:         "F8",
	tcell.KeyF9:         "F9",
	tcell.KeyF10:        "F10",
	tcell.KeyF11:        "F11",
	tcell.KeyF12:        "F12",
}

// KeyName returns the binding name of a key event, or "" for keys that
// cannot be bound.
func KeyName(ev *tcell.EventKey) string {
	mod := ev.Modifiers()

	switch k := ev.Key(); {
	case k == tcell.KeyRune:
		name := string(ev.Rune())
		if mod&tcell.ModAlt != 0 {
			name = "Alt+" + name
		}
		return name

	case k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ && specialNames[k] == "":
		return "Ctrl+" + string(rune('a'+int(k-tcell.KeyCtrlA)))

	default:
		name, ok := specialNames[k]
		if !ok {
			return ""
		}
		return modPrefix(mod) + name
	}
}

func modPrefix(mod tcell.ModMask) string {
	var p string
	if mod&tcell.ModCtrl != 0 {
		p += "Ctrl+"
	}
	if mod&tcell.ModAlt != 0 {
		p += "Alt+"
	}
	if mod&tcell.ModShift != 0 {
		p += "Shift+"
	}
	return p
}

// IsQuit reports whether ev ends the front-end.
func IsQuit(ev *tcell.EventKey) bool {
	return ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC
}

// Frontend dispatches bound keys to an Executor.
type Frontend struct {
	ex       Executor
	bindings map[string]config.KeyBinding
	logger   *logging.Logger

	mu     sync.Mutex
	status string
}

// New creates a front-end. bindings is not copied.
func New(ex Executor, bindings map[string]config.KeyBinding, logger *logging.Logger) *Frontend {
	return &Frontend{
		ex:       ex,
		bindings: bindings,
		logger:   logger.WithComponent("keys"),
	}
}

// HandleKey dispatches the binding for ev, if any, and reports whether the
// front-end should quit.
func (f *Frontend) HandleKey(ev *tcell.EventKey) (quit bool) {
	if IsQuit(ev) {
		return true
	}

	name := KeyName(ev)
	b, ok := f.bindings[name]
	if !ok {
		return false
	}

	result, err := f.ex.Exec(b.Method, b.Params)
	if err != nil {
		f.logger.Error("key %s: %s failed: %v", name, b.Method, err)
		f.setStatus(fmt.Sprintf("%s: %s failed: %v", name, b.Method, err))
		return false
	}
	f.logger.Debug("key %s: %s -> %v", name, b.Method, result)
	f.setStatus(fmt.Sprintf("%s: %s", name, describe(b.Method, result)))
	return false
}

func describe(method string, result any) string {
	switch v := result.(type) {
	case nil:
		return method
	case []byte:
		return fmt.Sprintf("%s -> %d bytes", method, len(v))
	default:
		return fmt.Sprintf("%s -> %v", method, v)
	}
}

// Status returns a description of the last dispatched key.
func (f *Frontend) Status() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *Frontend) setStatus(s string) {
	f.mu.Lock()
	f.status = s
	f.mu.Unlock()
}

// Run polls screen for key events until a quit key is pressed or ctx is
// done. The caller owns screen and must have initialized it.
func (f *Frontend) Run(ctx context.Context, screen tcell.Screen) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = screen.PostEvent(tcell.NewEventInterrupt(nil)) // best-effort; queue may be full
		case <-done:
		}
	}()

	f.draw(screen)
	for {
		ev := screen.PollEvent()
		switch e := ev.(type) {
		case nil:
			return nil
		case *tcell.EventKey:
			if f.HandleKey(e) {
				return nil
			}
			f.draw(screen)
		case *tcell.EventResize:
			screen.Sync()
			f.draw(screen)
		case *tcell.EventInterrupt:
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
}

func (f *Frontend) draw(screen tcell.Screen) {
	screen.Clear()

	style := tcell.StyleDefault
	bold := style.Bold(true)

	row := 0
	drawText(screen, 0, row, bold, "emuctl: press a bound key, Esc to quit")
	row += 2

	for _, name := range sortedKeys(f.bindings) {
		drawText(screen, 2, row, style, fmt.Sprintf("%-10s %s", name, f.bindings[name].Method))
		row++
	}

	if s := f.Status(); s != "" {
		drawText(screen, 0, row+1, bold, s)
	}
	screen.Show()
}

func sortedKeys(m map[string]config.KeyBinding) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}

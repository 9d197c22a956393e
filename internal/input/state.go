// Package input encodes button states into the values hosts expect.
package input

// Input state names accepted by ValueFromState.
const (
	StatePressed  = "pressed"
	StateReleased = "released"
	StateAnalog   = "analog"
)

// Analog axis codes occupy the button range [AnalogFirst, AnalogLast].
const (
	AnalogFirst = 16
	AnalogLast  = 23
)

// MaxPlayers is the number of controller ports. Players are numbered from 0.
const MaxPlayers = 4

// MaxAxis is the value of a fully deflected analog axis.
const MaxAxis = 0x7fff

// IsAnalogButton reports whether button is one of the analog axis codes.
func IsAnalogButton(button int) bool {
	return button >= AnalogFirst && button <= AnalogLast
}

// ValueFromState derives the value to send for button given a named state.
//
// A pressed analog axis maps to MaxAxis and a pressed digital button to 1.
// Analog always maps to MaxAxis. Released and unrecognized states map to 0.
func ValueFromState(state string, button int) int {
	switch state {
	case StateReleased:
		return 0
	case StatePressed:
		if IsAnalogButton(button) {
			return MaxAxis
		}
		return 1
	case StateAnalog:
		return MaxAxis
	default:
		return 0
	}
}

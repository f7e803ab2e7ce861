// Package keycode defines the shared wire key-code space. Every capture and
// emulation backend already speaks Linux evdev codes natively (wlroots
// virtual-keyboard, uinput, and raw evdev capture all take evdev codes
// directly), so the wire format reuses them rather than inventing a new
// numbering; the portal backend also passes them through unchanged.
package keycode

// Code is a key code in the shared wire space (Linux evdev numbering).
type Code = uint32

// Named codes for the common modifier keys. The coordination core matches
// the release chord against plain numeric codes from the config and does
// not import these names.
const (
	LeftCtrl   Code = 29
	LeftShift  Code = 42
	LeftAlt    Code = 56
	LeftMeta   Code = 125
	RightCtrl  Code = 97
	RightShift Code = 54
	RightAlt   Code = 100
	RightMeta  Code = 126
)

// Button identifies a pointer button in the shared wire space, matching the
// evdev BTN_* numbering so uinput/wlroots/evdev backends need no translation.
type Button = uint32

const (
	ButtonLeft     Button = 272
	ButtonRight    Button = 273
	ButtonMiddle   Button = 274
	ButtonSide     Button = 275 // "back"
	ButtonExtra    Button = 276 // "forward"
)

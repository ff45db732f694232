package xkb

import (
	evdev "github.com/gvalkov/golang-evdev"
)

const (
	keyCapsLock   = evdev.KEY_CAPSLOCK
	keyLeftCtrl   = evdev.KEY_LEFTCTRL
	keyRightCtrl  = evdev.KEY_RIGHTCTRL
	keyLeftShift  = evdev.KEY_LEFTSHIFT
	keyRightShift = evdev.KEY_RIGHTSHIFT
	keyLeftAlt    = evdev.KEY_LEFTALT
	keyRightAlt   = evdev.KEY_RIGHTALT
	keyLeftMeta   = evdev.KEY_LEFTMETA
	keyRightMeta  = evdev.KEY_RIGHTMETA
	keyNumLock    = evdev.KEY_NUMLOCK
	keyEsc        = evdev.KEY_ESC
)

var composeKeys = map[string]uint16{
	"ralt":  keyRightAlt,
	"lwin":  keyLeftMeta,
	"rwin":  keyRightMeta,
	"menu":  evdev.KEY_COMPOSE,
	"rctrl": keyRightCtrl,
	"caps":  keyCapsLock,
}

// Combining marks carried by dead keys.
const (
	markGrave      = '\u0300'
	markAcute      = '\u0301'
	markCircumflex = '\u0302'
	markTilde      = '\u0303'
	markDiaeresis  = '\u0308'
)

type layoutKey struct {
	layout  string
	variant string
}

// entry lists the symbols of one key: base, shift, level3, level3+shift.
type entry struct {
	levels [4]Keysym
	// alpha keys are affected by caps lock
	alpha bool
}

type layout struct {
	name string
	// altGr enables level 3 on the right alt key
	altGr bool
	keys  map[uint16]entry
}

var layouts = map[layoutKey]*layout{
	{"us", ""}:       newUS(),
	{"fr", ""}:       newFR(),
	{"fr", "azerty"}: newFR(),
}

func ch(r rune) Keysym   { return Keysym{Rune: r} }
func dead(m rune) Keysym { return Keysym{Dead: m} }

func sym(base, shift rune) entry {
	return entry{levels: [4]Keysym{ch(base), ch(shift)}}
}

func sym3(base, shift, l3 Keysym) entry {
	return entry{levels: [4]Keysym{base, shift, l3}}
}

func letter(r rune) entry {
	return entry{levels: [4]Keysym{ch(r), ch(r - 'a' + 'A')}, alpha: true}
}

// common holds keys that are identical across the built-in layouts.
func common() map[uint16]entry {
	m := map[uint16]entry{
		evdev.KEY_SPACE:     sym(' ', ' '),
		evdev.KEY_ENTER:     sym('\r', '\r'),
		evdev.KEY_KPENTER:   sym('\r', '\r'),
		evdev.KEY_TAB:       sym('\t', '\t'),
		evdev.KEY_BACKSPACE: sym('\b', '\b'),
		evdev.KEY_ESC:       sym('\x1b', '\x1b'),
		evdev.KEY_DELETE:    sym('\x7f', '\x7f'),

		evdev.KEY_KPSLASH:    sym('/', '/'),
		evdev.KEY_KPASTERISK: sym('*', '*'),
		evdev.KEY_KPMINUS:    sym('-', '-'),
		evdev.KEY_KPPLUS:     sym('+', '+'),
	}
	return m
}

// keypad keys produce digits only with num lock.
var keypad = map[uint16]rune{
	evdev.KEY_KP0: '0', evdev.KEY_KP1: '1', evdev.KEY_KP2: '2', evdev.KEY_KP3: '3',
	evdev.KEY_KP4: '4', evdev.KEY_KP5: '5', evdev.KEY_KP6: '6', evdev.KEY_KP7: '7',
	evdev.KEY_KP8: '8', evdev.KEY_KP9: '9', evdev.KEY_KPDOT: '.',
}

var qwertyLetters = map[uint16]rune{
	evdev.KEY_Q: 'q', evdev.KEY_W: 'w', evdev.KEY_E: 'e', evdev.KEY_R: 'r', evdev.KEY_T: 't',
	evdev.KEY_Y: 'y', evdev.KEY_U: 'u', evdev.KEY_I: 'i', evdev.KEY_O: 'o', evdev.KEY_P: 'p',
	evdev.KEY_A: 'a', evdev.KEY_S: 's', evdev.KEY_D: 'd', evdev.KEY_F: 'f', evdev.KEY_G: 'g',
	evdev.KEY_H: 'h', evdev.KEY_J: 'j', evdev.KEY_K: 'k', evdev.KEY_L: 'l',
	evdev.KEY_Z: 'z', evdev.KEY_X: 'x', evdev.KEY_C: 'c', evdev.KEY_V: 'v', evdev.KEY_B: 'b',
	evdev.KEY_N: 'n', evdev.KEY_M: 'm',
}

func newUS() *layout {
	keys := common()
	for code, r := range qwertyLetters {
		keys[code] = letter(r)
	}
	for code, e := range map[uint16]entry{
		evdev.KEY_GRAVE: sym('`', '~'),
		evdev.KEY_1:     sym('1', '!'),
		evdev.KEY_2:     sym('2', '@'),
		evdev.KEY_3:     sym('3', '#'),
		evdev.KEY_4:     sym('4', '$'),
		evdev.KEY_5:     sym('5', '%'),
		evdev.KEY_6:     sym('6', '^'),
		evdev.KEY_7:     sym('7', '&'),
		evdev.KEY_8:     sym('8', '*'),
		evdev.KEY_9:     sym('9', '('),
		evdev.KEY_0:     sym('0', ')'),

		evdev.KEY_MINUS:      sym('-', '_'),
		evdev.KEY_EQUAL:      sym('=', '+'),
		evdev.KEY_LEFTBRACE:  sym('[', '{'),
		evdev.KEY_RIGHTBRACE: sym(']', '}'),
		evdev.KEY_BACKSLASH:  sym('\\', '|'),
		evdev.KEY_SEMICOLON:  sym(';', ':'),
		evdev.KEY_APOSTROPHE: sym('\'', '"'),
		evdev.KEY_COMMA:      sym(',', '<'),
		evdev.KEY_DOT:        sym('.', '>'),
		evdev.KEY_SLASH:      sym('/', '?'),
		evdev.KEY_102ND:      sym('<', '>'),
	} {
		keys[code] = e
	}
	return &layout{name: "English (US)", keys: keys}
}

// newFR is the French AZERTY layout: the A/Q, Z/W and M keys move, the
// number row needs shift for digits and right alt selects level 3.
func newFR() *layout {
	keys := common()
	for code, r := range qwertyLetters {
		keys[code] = letter(r)
	}
	keys[evdev.KEY_Q] = letter('a')
	keys[evdev.KEY_A] = letter('q')
	keys[evdev.KEY_W] = letter('z')
	keys[evdev.KEY_Z] = letter('w')
	keys[evdev.KEY_SEMICOLON] = letter('m')
	keys[evdev.KEY_E] = entry{levels: [4]Keysym{ch('e'), ch('E'), ch('€')}, alpha: true}

	var none Keysym
	for code, e := range map[uint16]entry{
		evdev.KEY_GRAVE: sym('²', 0),
		evdev.KEY_1:     sym('&', '1'),
		evdev.KEY_2:     sym3(ch('é'), ch('2'), dead(markTilde)),
		evdev.KEY_3:     sym3(ch('"'), ch('3'), ch('#')),
		evdev.KEY_4:     sym3(ch('\''), ch('4'), ch('{')),
		evdev.KEY_5:     sym3(ch('('), ch('5'), ch('[')),
		evdev.KEY_6:     sym3(ch('-'), ch('6'), ch('|')),
		evdev.KEY_7:     sym3(ch('è'), ch('7'), dead(markGrave)),
		evdev.KEY_8:     sym3(ch('_'), ch('8'), ch('\\')),
		evdev.KEY_9:     sym3(ch('ç'), ch('9'), ch('^')),
		evdev.KEY_0:     sym3(ch('à'), ch('0'), ch('@')),

		evdev.KEY_MINUS:      sym3(ch(')'), ch('°'), ch(']')),
		evdev.KEY_EQUAL:      sym3(ch('='), ch('+'), ch('}')),
		evdev.KEY_LEFTBRACE:  sym3(dead(markCircumflex), dead(markDiaeresis), none),
		evdev.KEY_RIGHTBRACE: sym3(ch('$'), ch('£'), ch('¤')),
		evdev.KEY_APOSTROPHE: sym('ù', '%'),
		evdev.KEY_BACKSLASH:  sym('*', 'µ'),
		evdev.KEY_M:          sym(',', '?'),
		evdev.KEY_COMMA:      sym(';', '.'),
		evdev.KEY_DOT:        sym(':', '/'),
		evdev.KEY_SLASH:      sym('!', '§'),
		evdev.KEY_102ND:      sym('<', '>'),
	} {
		keys[code] = e
	}
	return &layout{name: "French", altGr: true, keys: keys}
}

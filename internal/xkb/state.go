package xkb

// Modifiers is the set of held modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModLogo
)

func (m Modifiers) Shift() bool { return m&ModShift != 0 }
func (m Modifiers) Ctrl() bool  { return m&ModCtrl != 0 }
func (m Modifiers) Alt() bool   { return m&ModAlt != 0 }
func (m Modifiers) Logo() bool  { return m&ModLogo != 0 }

// State tracks held keys and locks against a keymap. It is not safe for
// concurrent use.
type State struct {
	km       *Keymap
	pressed  map[uint16]bool
	capsLock bool
	numLock  bool
}

// NewState returns a state with nothing held and all locks off.
func (k *Keymap) NewState() *State {
	return &State{km: k, pressed: make(map[uint16]bool)}
}

// UpdateKey records a key press or release and reports whether the
// modifiers or locks changed.
func (s *State) UpdateKey(code uint16, down bool) bool {
	r := s.km.resolve(code)
	if r == 0 {
		return false
	}
	mods, caps, num := s.Modifiers(), s.capsLock, s.numLock

	if down {
		if !s.pressed[r] {
			switch r {
			case keyCapsLock:
				s.capsLock = !s.capsLock
			case keyNumLock:
				s.numLock = !s.numLock
			}
		}
		s.pressed[r] = true
	} else {
		delete(s.pressed, r)
	}

	return mods != s.Modifiers() || caps != s.capsLock || num != s.numLock
}

// Modifiers returns the effective modifier set.
func (s *State) Modifiers() Modifiers {
	var m Modifiers
	if s.pressed[keyLeftShift] || s.pressed[keyRightShift] {
		m |= ModShift
	}
	if s.pressed[keyLeftCtrl] || s.pressed[keyRightCtrl] {
		m |= ModCtrl
	}
	if s.pressed[keyLeftAlt] || (s.pressed[keyRightAlt] && !s.levelThree()) {
		m |= ModAlt
	}
	if s.pressed[keyLeftMeta] || s.pressed[keyRightMeta] {
		m |= ModLogo
	}
	return m
}

// CapsLock reports the caps lock state.
func (s *State) CapsLock() bool { return s.capsLock }

// NumLock reports the num lock state.
func (s *State) NumLock() bool { return s.numLock }

// levelThree reports whether right alt acts as AltGr.
func (s *State) levelThree() bool {
	return s.km.layout.altGr && s.km.composeKey != keyRightAlt
}

// Key returns the symbol the key produces with the current state. Holding
// ctrl turns letters into control characters.
func (s *State) Key(code uint16) Keysym {
	r := s.km.resolve(code)
	if r == 0 {
		return Keysym{}
	}
	if s.km.composeKey != 0 && r == s.km.composeKey {
		return Keysym{Compose: true}
	}
	if d, ok := keypad[r]; ok {
		if s.numLock {
			return ch(d)
		}
		return Keysym{}
	}

	e, ok := s.km.layout.keys[r]
	if !ok {
		return Keysym{}
	}

	shift := s.Modifiers().Shift()
	if e.alpha && s.capsLock {
		shift = !shift
	}
	level := 0
	if shift {
		level = 1
	}
	if s.levelThree() && s.pressed[keyRightAlt] {
		level += 2
	}

	sym := e.levels[level]
	if sym.Rune != 0 && s.Modifiers().Ctrl() {
		sym.Rune = control(sym.Rune)
	}
	return sym
}

func control(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z':
		return r - 'a' + 1
	case r >= '@' && r <= '_':
		return r - '@'
	case r == ' ':
		return 0
	}
	return r
}

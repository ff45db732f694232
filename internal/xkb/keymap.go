// Package xkb compiles keymaps from rule names and tracks keyboard state.
//
// Only a built-in set of layouts is known. Key codes are evdev codes.
package xkb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/kmsloop/internal/logger"
)

var (
	// ErrKeymapCompile is returned when rule names cannot produce a keymap.
	ErrKeymapCompile = errors.New("xkb: failed to compile keymap")
	// ErrComposeCompile is returned when no compose table exists for a locale.
	ErrComposeCompile = errors.New("xkb: failed to compile compose table")
)

// RuleNames selects a keymap. Empty fields mean the system default.
type RuleNames struct {
	Rules   string
	Model   string
	Layout  string
	Variant string
	Options string
}

// Keysym is what a key produces at the current level.
type Keysym struct {
	// Rune is the character produced, 0 if none.
	Rune rune
	// Dead is the combining mark of a dead key.
	Dead rune
	// Compose is set for the compose (Multi_key) key.
	Compose bool
}

// IsZero reports whether the key produces nothing.
func (k Keysym) IsZero() bool { return k == Keysym{} }

// Keymap is an immutable compiled keymap.
type Keymap struct {
	names  RuleNames
	layout *layout
	// remaps of physical keys requested by options, applied before lookup
	remap      map[uint16]uint16
	composeKey uint16
}

// Compile builds a keymap. Layout may be a comma separated list; only the
// first group is used unless a grp: option names a toggle key.
func Compile(names RuleNames) (*Keymap, error) {
	if names.Rules != "" && names.Rules != "evdev" && names.Rules != "base" {
		return nil, fmt.Errorf("%w: unknown rules %q", ErrKeymapCompile, names.Rules)
	}

	layoutName, _, _ := strings.Cut(names.Layout, ",")
	variant, _, _ := strings.Cut(names.Variant, ",")
	layoutName = strings.TrimSpace(layoutName)
	if layoutName == "" {
		layoutName = "us"
	}

	l, ok := layouts[layoutKey{layoutName, strings.TrimSpace(variant)}]
	if !ok {
		return nil, fmt.Errorf("%w: unknown layout %q variant %q", ErrKeymapCompile, layoutName, variant)
	}

	km := &Keymap{names: names, layout: l, remap: map[uint16]uint16{}}
	if err := km.applyOptions(names.Options); err != nil {
		return nil, err
	}

	logger.Debug("compiled keymap", "layout", layoutName, "variant", variant, "options", names.Options)
	return km, nil
}

// Names returns the rule names the keymap was compiled from.
func (k *Keymap) Names() RuleNames { return k.names }

// LayoutName is the human name of the active group, e.g. "English (US)".
func (k *Keymap) LayoutName() string { return k.layout.name }

func (k *Keymap) applyOptions(options string) error {
	for _, opt := range strings.Split(options, ",") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		group, value, ok := strings.Cut(opt, ":")
		if !ok || value == "" {
			return fmt.Errorf("%w: malformed option %q", ErrKeymapCompile, opt)
		}

		switch group {
		case "ctrl":
			switch value {
			case "nocaps":
				k.remap[keyCapsLock] = keyLeftCtrl
			case "swapcaps":
				k.remap[keyCapsLock] = keyLeftCtrl
				k.remap[keyLeftCtrl] = keyCapsLock
			default:
				logger.Warn("ignoring unsupported keymap option", "option", opt)
			}
		case "caps":
			switch value {
			case "escape":
				k.remap[keyCapsLock] = keyEsc
			case "none":
				k.remap[keyCapsLock] = 0
			default:
				logger.Warn("ignoring unsupported keymap option", "option", opt)
			}
		case "compose":
			code, ok := composeKeys[value]
			if !ok {
				logger.Warn("ignoring unsupported keymap option", "option", opt)
				continue
			}
			k.composeKey = code
		case "grp", "lv3", "terminate", "altwin", "shift", "eurosign", "numpad", "kpdl":
			logger.Debug("keymap option has no effect", "option", opt)
		default:
			return fmt.Errorf("%w: unknown option group %q", ErrKeymapCompile, group)
		}
	}
	return nil
}

// resolve applies option remapping. A zero result means the key is disabled.
func (k *Keymap) resolve(code uint16) uint16 {
	if to, ok := k.remap[code]; ok {
		return to
	}
	return code
}

// KeyFor finds the key producing r at the base or shift level. The lowest
// key code wins when several match.
func (k *Keymap) KeyFor(r rune) (code uint16, shift bool, ok bool) {
	for c, e := range k.layout.keys {
		for level := 0; level < 2; level++ {
			if e.levels[level].Rune != r {
				continue
			}
			if !ok || c < code || (c == code && level == 0) {
				code, shift, ok = c, level == 1, true
			}
		}
	}
	return code, shift, ok
}

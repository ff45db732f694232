package xkb

import (
	"fmt"
	"strings"

	"github.com/bnema/kmsloop/internal/logger"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/unicode/norm"
)

// multiKey stands for the compose key inside a sequence.
const multiKey = '\uffff'

// ComposeStatus is the result of feeding a symbol to a ComposeState.
type ComposeStatus int

const (
	// ComposeNothing means the symbol is not part of a sequence.
	ComposeNothing ComposeStatus = iota
	ComposeComposing
	ComposeComposed
	ComposeCancelled
)

func (s ComposeStatus) String() string {
	switch s {
	case ComposeNothing:
		return "nothing"
	case ComposeComposing:
		return "composing"
	case ComposeComposed:
		return "composed"
	case ComposeCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("ComposeStatus(%d)", int(s))
}

// ComposeTable maps key sequences to characters.
type ComposeTable struct {
	locale   string
	seqs     map[string]rune
	prefixes map[string]bool
}

var deadMarks = map[rune]rune{
	markGrave:      '`',
	markAcute:      '´',
	markCircumflex: '^',
	markTilde:      '~',
	markDiaeresis:  '¨',
}

// accents typed after the compose key, mapped to their combining mark.
var composeAccents = map[rune]rune{
	'`':  markGrave,
	'\'': markAcute,
	'^':  markCircumflex,
	'~':  markTilde,
	'"':  markDiaeresis,
}

var composeSpecials = map[string]rune{
	"oc": '©', "or": '®', "tm": '™', "ss": 'ß', "ae": 'æ', "AE": 'Æ',
	"oe": 'œ', "OE": 'Œ', "=e": '€', "e=": '€', "L-": '£', "Y=": '¥',
	"<<": '«', ">>": '»', "12": '½', "14": '¼', "34": '¾', "oo": '°',
	"!!": '¡', "??": '¿', "+-": '±', "xx": '×', "-:": '÷', "..": '…',
}

// CompileCompose builds the compose table for a locale such as
// "fr_FR.UTF-8". Only UTF-8 locales (and C/POSIX) have a table.
func CompileCompose(locale string) (*ComposeTable, error) {
	if err := checkLocale(locale); err != nil {
		return nil, err
	}

	t := &ComposeTable{locale: locale, seqs: map[string]rune{}, prefixes: map[string]bool{}}

	bases := []rune(" abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	for mark, spacing := range deadMarks {
		t.add(string(mark)+" ", spacing)
		t.add(string(mark)+string(mark), spacing)
		for _, b := range bases[1:] {
			if r, ok := combine(b, mark); ok {
				t.add(string(mark)+string(b), r)
			}
		}
	}
	for accent, mark := range composeAccents {
		for _, b := range bases[1:] {
			if r, ok := combine(b, mark); ok {
				t.add(string(multiKey)+string(accent)+string(b), r)
				t.add(string(multiKey)+string(b)+string(accent), r)
			}
		}
	}
	for seq, r := range composeSpecials {
		t.add(string(multiKey)+seq, r)
	}

	logger.Debug("compiled compose table", "locale", locale, "sequences", len(t.seqs))
	return t, nil
}

func checkLocale(locale string) error {
	name, _, _ := strings.Cut(locale, "@")
	if name == "" || name == "C" || name == "POSIX" {
		return nil
	}
	_, codeset, ok := strings.Cut(name, ".")
	if !ok {
		return nil
	}
	enc, err := htmlindex.Get(codeset)
	if err != nil {
		return fmt.Errorf("%w: unknown codeset %q", ErrComposeCompile, codeset)
	}
	if n, _ := htmlindex.Name(enc); n != "utf-8" {
		return fmt.Errorf("%w: no table for codeset %q", ErrComposeCompile, codeset)
	}
	return nil
}

func combine(base, mark rune) (rune, bool) {
	s := norm.NFC.String(string(base) + string(mark))
	rs := []rune(s)
	if len(rs) != 1 {
		return 0, false
	}
	return rs[0], true
}

func (t *ComposeTable) add(seq string, r rune) {
	t.seqs[seq] = r
	rs := []rune(seq)
	for i := 1; i < len(rs); i++ {
		t.prefixes[string(rs[:i])] = true
	}
}

// Locale is the locale the table was compiled for.
func (t *ComposeTable) Locale() string { return t.locale }

// NewState returns an idle compose state.
func (t *ComposeTable) NewState() *ComposeState {
	return &ComposeState{table: t}
}

// ComposeState follows one sequence at a time.
type ComposeState struct {
	table    *ComposeTable
	buf      []rune
	composed rune
}

// Feed advances the state with a pressed key's symbol. Symbols producing
// nothing (modifiers) leave the state untouched.
func (c *ComposeState) Feed(sym Keysym) ComposeStatus {
	var r rune
	switch {
	case sym.Compose:
		r = multiKey
	case sym.Dead != 0:
		r = sym.Dead
	case sym.Rune != 0:
		r = sym.Rune
	default:
		if len(c.buf) > 0 {
			return ComposeComposing
		}
		return ComposeNothing
	}

	c.composed = 0
	seq := string(append(c.buf, r))
	if v, ok := c.table.seqs[seq]; ok {
		c.buf = c.buf[:0]
		c.composed = v
		return ComposeComposed
	}
	if c.table.prefixes[seq] {
		c.buf = append(c.buf, r)
		return ComposeComposing
	}
	if len(c.buf) == 0 {
		return ComposeNothing
	}
	c.buf = c.buf[:0]
	return ComposeCancelled
}

// Composed returns the character finished by the last Feed.
func (c *ComposeState) Composed() rune { return c.composed }

// Reset drops a partial sequence.
func (c *ComposeState) Reset() {
	c.buf = c.buf[:0]
	c.composed = 0
}

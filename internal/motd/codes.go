package motd

import (
	"github.com/lucasb-eyer/go-colorful"
)

// Marker introduces every two-character format code.
const Marker = '§'

// Kind distinguishes the three families of format codes.
type Kind int

const (
	KindColor Kind = iota + 1
	KindDecoration
	KindReset
)

func (k Kind) String() string {
	switch k {
	case KindColor:
		return "color"
	case KindDecoration:
		return "decoration"
	case KindReset:
		return "reset"
	}
	return "unknown"
}

// Decoration is a bit set of independent text decorations.
type Decoration uint8

const (
	Bold Decoration = 1 << iota
	Italic
	Underline
	Strikethrough
	Obfuscated

	NoDecoration Decoration = 0
)

// Has reports whether every bit in flag is set.
func (d Decoration) Has(flag Decoration) bool {
	return flag != 0 && d&flag == flag
}

// Code is a single registry entry.
type Code struct {
	Letter     rune
	Kind       Kind
	Color      colorful.Color
	Decoration Decoration
}

var registry = map[rune]Code{}

func init() {
	colors := []struct {
		letter rune
		hex    string
	}{
		{'0', "#000000"},
		{'1', "#0000AA"},
		{'2', "#00AA00"},
		{'3', "#00AAAA"},
		{'4', "#AA0000"},
		{'5', "#AA00AA"},
		{'6', "#FFAA00"},
		{'7', "#AAAAAA"},
		{'8', "#555555"},
		{'9', "#5555FF"},
		{'a', "#55FF55"},
		{'b', "#55FFFF"},
		{'c', "#FF5555"},
		{'d', "#FF55FF"},
		{'e', "#FFFF55"},
		{'f', "#FFFFFF"},
	}
	for _, entry := range colors {
		c, err := colorful.Hex(entry.hex)
		if err != nil {
			panic("motd: bad registry colour " + entry.hex)
		}
		registry[entry.letter] = Code{Letter: entry.letter, Kind: KindColor, Color: c}
	}

	decorations := map[rune]Decoration{
		'k': Obfuscated,
		'l': Bold,
		'm': Strikethrough,
		'n': Underline,
		'o': Italic,
	}
	for letter, flag := range decorations {
		registry[letter] = Code{Letter: letter, Kind: KindDecoration, Decoration: flag}
	}

	registry['r'] = Code{Letter: 'r', Kind: KindReset}
}

// Lookup resolves a marker/letter pair to its registry entry. Letters are
// matched case-insensitively.
func Lookup(marker, letter rune) (Code, bool) {
	if marker != Marker {
		return Code{}, false
	}
	code, ok := registry[asciiLower(letter)]
	return code, ok
}

// ColorCode returns the registry colour for a colour letter, mainly for callers
// that need the palette (legends, tests).
func ColorCode(letter rune) (colorful.Color, bool) {
	code, ok := registry[asciiLower(letter)]
	if !ok || code.Kind != KindColor {
		return colorful.Color{}, false
	}
	return code.Color, true
}

// asciiLower folds A-Z only; unicode.ToLower would map U+212A KELVIN SIGN onto 'k'.
func asciiLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// apply folds a code into the running style and returns the new style.
func (c Code) apply(s Style) Style {
	switch c.Kind {
	case KindReset:
		return Style{}
	case KindColor:
		s.Color = c.Color
		s.HasColor = true
	case KindDecoration:
		s.Decorations |= c.Decoration
	}
	return s
}

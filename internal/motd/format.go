// Package motd turns Minecraft Bedrock MOTD strings with inline § format
// codes into styled fragments and renderable HTML.
package motd

import (
	"strings"
	"unicode/utf8"

	"github.com/lucasb-eyer/go-colorful"
)

// Style is the set of attributes attached to a run of text. The zero value
// is the default style: no colour and no decorations.
type Style struct {
	Color       colorful.Color
	HasColor    bool
	Decorations Decoration
}

func (s Style) Bold() bool          { return s.Decorations.Has(Bold) }
func (s Style) Italic() bool        { return s.Decorations.Has(Italic) }
func (s Style) Underline() bool     { return s.Decorations.Has(Underline) }
func (s Style) Strikethrough() bool { return s.Decorations.Has(Strikethrough) }
func (s Style) Obfuscated() bool    { return s.Decorations.Has(Obfuscated) }

// IsZero reports whether s is the default style.
func (s Style) IsZero() bool {
	return !s.HasColor && s.Decorations == NoDecoration
}

// Hex returns the colour as #rrggbb, or "" when no colour is set.
func (s Style) Hex() string {
	if !s.HasColor {
		return ""
	}
	return s.Color.Hex()
}

// Fragment is a run of literal text and the style that was active when it began.
type Fragment struct {
	Text  string `json:"text"`
	Style Style  `json:"style"`
}

// Format scans input left to right and returns its literal text runs in order.
// Recognised codes are consumed; unknown codes stay in the text. An empty
// input, or one that holds only codes, yields no fragments.
func Format(input string) []Fragment {
	fragments := []Fragment{}
	scan(input, func(text string, style Style) {
		fragments = append(fragments, Fragment{Text: text, Style: style})
	})
	return fragments
}

// FormatPtr is Format for optional values; nil is treated as empty.
func FormatPtr(input *string) []Fragment {
	if input == nil {
		return []Fragment{}
	}
	return Format(*input)
}

// Strip returns input with every recognised code removed.
func Strip(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	scan(input, func(text string, _ Style) {
		b.WriteString(text)
	})
	return b.String()
}

// scan calls emit once per non-empty text run. The style is threaded through
// the loop as a value so every emitted run owns its own copy.
func scan(input string, emit func(text string, style Style)) {
	var style Style
	start := 0
	for i := 0; i < len(input); {
		r, size := utf8.DecodeRuneInString(input[i:])
		if r != Marker || i+size >= len(input) {
			i += size
			continue
		}
		letter, letterSize := utf8.DecodeRuneInString(input[i+size:])
		code, ok := Lookup(r, letter)
		if !ok {
			i += size
			continue
		}
		if i > start {
			emit(input[start:i], style)
		}
		style = code.apply(style)
		i += size + letterSize
		start = i
	}
	if start < len(input) {
		emit(input[start:], style)
	}
}

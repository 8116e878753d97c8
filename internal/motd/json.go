package motd

import "encoding/json"

type styleJSON struct {
	Color         *string `json:"color"`
	Bold          bool    `json:"bold"`
	Italic        bool    `json:"italic"`
	Underline     bool    `json:"underline"`
	Strikethrough bool    `json:"strikethrough"`
	Obfuscated    bool    `json:"obfuscated"`
}

// MarshalJSON encodes the style with a nullable hex colour.
func (s Style) MarshalJSON() ([]byte, error) {
	out := styleJSON{
		Bold:          s.Bold(),
		Italic:        s.Italic(),
		Underline:     s.Underline(),
		Strikethrough: s.Strikethrough(),
		Obfuscated:    s.Obfuscated(),
	}
	if s.HasColor {
		hex := s.Color.Hex()
		out.Color = &hex
	}
	return json.Marshal(out)
}

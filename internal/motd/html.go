package motd

import (
	"html"
	"html/template"
	"strings"
)

// ObfuscatedClass is added to spans carrying the §k decoration so a
// stylesheet can animate them.
const ObfuscatedClass = "mc-obfuscated"

// CSS returns the inline style declarations for s, in a fixed order.
func (s Style) CSS() string {
	var decls []string
	if s.HasColor {
		decls = append(decls, "color: "+s.Color.Hex())
	}
	if s.Bold() {
		decls = append(decls, "font-weight: bold")
	}
	if s.Italic() {
		decls = append(decls, "font-style: italic")
	}
	var lines []string
	if s.Underline() {
		lines = append(lines, "underline")
	}
	if s.Strikethrough() {
		lines = append(lines, "line-through")
	}
	if len(lines) > 0 {
		decls = append(decls, "text-decoration: "+strings.Join(lines, " "))
	}
	if s.Obfuscated() {
		decls = append(decls, "animation: magic 1s infinite", "display: inline-block")
	}
	return strings.Join(decls, "; ")
}

// HTML renders fragments as escaped markup. Unstyled text is emitted bare.
func HTML(fragments []Fragment) string {
	var b strings.Builder
	for _, f := range fragments {
		text := html.EscapeString(f.Text)
		if f.Style.IsZero() {
			b.WriteString(text)
			continue
		}
		b.WriteString("<span")
		if f.Style.Obfuscated() {
			b.WriteString(` class="` + ObfuscatedClass + `"`)
		}
		b.WriteString(` style="`)
		b.WriteString(html.EscapeString(f.Style.CSS()))
		b.WriteString(`">`)
		b.WriteString(text)
		b.WriteString("</span>")
	}
	return b.String()
}

// RenderHTML formats and renders input in one step, for templates.
func RenderHTML(input string) template.HTML {
	return template.HTML(HTML(Format(input)))
}

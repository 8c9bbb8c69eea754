// Package richtext converts note content between the Markdown source the CLI
// writes and the HTML the editor keeps in richContent.
package richtext

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML escapes the five HTML special characters.
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

// FromMarkdown wraps every source line in its own <div> block, the shape the
// editor produces for typed text. Blank lines become <div><br></div> so the
// vertical spacing survives.
func FromMarkdown(content string) string {
	var sb strings.Builder
	for _, line := range strings.Split(content, "\n") {
		escaped := EscapeHTML(line)
		if escaped == "" {
			escaped = "<br>"
		}
		sb.WriteString("<div>")
		sb.WriteString(escaped)
		sb.WriteString("</div>")
	}
	return sb.String()
}

var renderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderMarkdown renders Markdown to an HTML fragment.
func RenderMarkdown(md string) (string, error) {
	var buf bytes.Buffer
	if err := renderer.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

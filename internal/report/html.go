package report

import (
	"bytes"
	"fmt"
	"html"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var converter = goldmark.New(goldmark.WithExtensions(extension.GFM))

const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; margin-bottom: 1.5rem; }
th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; }
th { background: #f4f4f4; }
</style>
</head>
<body>
`

// HTML renders r as a standalone HTML page.
func HTML(r Report) ([]byte, error) {
	var body bytes.Buffer
	if err := converter.Convert([]byte(Markdown(r)), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, htmlHead, html.EscapeString(Title))
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

// Terminal renders r with ANSI styling for a terminal of the given width.
func Terminal(r Report, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	out, err := renderer.Render(Markdown(r))
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

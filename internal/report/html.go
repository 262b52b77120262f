package report

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/searchflow/internal/filelock"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Table colours: dark blue header with white bold text, light grey
// alternating body rows
const (
	headerBackground = "#1F4E79"
	headerText       = "#FFFFFF"
	altRowBackground = "#F2F2F2"
)

var tableStyle = fmt.Sprintf(`body { font-family: Calibri, Arial, sans-serif; max-width: 960px; margin: 2em auto; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #BFBFBF; padding: 4px 8px; color: #000000; }
th { background: %s; color: %s; font-weight: bold; }
tbody tr:nth-child(even) td { background: %s; }
`, headerBackground, headerText, altRowBackground)

// RenderHTML renders markdown as a standalone HTML document with styled
// tables. The first heading becomes the title.
func RenderHTML(source []byte) ([]byte, error) {
	md := newMarkdown()
	var body bytes.Buffer
	if err := md.Convert(source, &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n", html.EscapeString(title(source)))
	fmt.Fprintf(&out, "<style>\n%s</style>\n</head>\n<body>\n", tableStyle)
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

func title(source []byte) string {
	doc := newMarkdown().Parser().Parse(text.NewReader(source))
	var found string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if h, ok := n.(*ast.Heading); ok && entering {
			var sb strings.Builder
			for c := h.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					sb.Write(t.Segment.Value(source))
				}
			}
			found = sb.String()
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if found == "" {
		return "Report"
	}
	return found
}

// Conversion lists the files written by Convert
type Conversion struct {
	CleanedPath string
	HTMLPath    string
	Removed     int // Bytes removed by cleaning
}

// Convert cleans the markdown at input, writes the cleaned copy next to it
// as <name>.clean.md and renders it to output. An empty output means
// <name>.html next to the input.
func Convert(input, output string) (*Conversion, error) {
	source, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	base := strings.TrimSuffix(input, filepath.Ext(input))
	if output == "" {
		output = base + ".html"
	}

	cleaned := Clean(source)
	conv := &Conversion{
		CleanedPath: base + ".clean.md",
		HTMLPath:    output,
		Removed:     len(source) - len(cleaned),
	}
	if err := filelock.AtomicWrite(conv.CleanedPath, cleaned); err != nil {
		return nil, fmt.Errorf("write cleaned report: %w", err)
	}

	rendered, err := RenderHTML(cleaned)
	if err != nil {
		return nil, err
	}
	if err := filelock.AtomicWrite(conv.HTMLPath, rendered); err != nil {
		return nil, fmt.Errorf("write html report: %w", err)
	}
	return conv, nil
}

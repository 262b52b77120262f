// Package report writes the run summary document and prepares markdown
// reports for rendering outside a markdown viewer.
package report

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// boxDrawing marks a code block as a text diagram
const boxDrawing = "┌┐└┘│─═╔╗╚╝║▼►▲◄├┤┬┴┼"

var blankRuns = regexp.MustCompile(`\n{3,}`)

func newMarkdown() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
}

// Clean removes fenced code blocks that contain box-drawing characters and
// collapses the blank lines left behind. Other code blocks are kept as is.
func Clean(source []byte) []byte {
	doc := newMarkdown().Parser().Parse(text.NewReader(source))

	type span struct{ start, stop int }
	var drop []span
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := block.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		first, last := lines.At(0), lines.At(lines.Len()-1)
		if !bytes.ContainsAny(source[first.Start:last.Stop], boxDrawing) {
			return ast.WalkSkipChildren, nil
		}
		drop = append(drop, span{
			start: openingFence(source, first.Start),
			stop:  closingFence(source, last.Stop),
		})
		return ast.WalkSkipChildren, nil
	})

	if len(drop) == 0 {
		return source
	}

	var out bytes.Buffer
	pos := 0
	for _, s := range drop {
		out.Write(source[pos:s.start])
		pos = s.stop
	}
	out.Write(source[pos:])
	return blankRuns.ReplaceAll(out.Bytes(), []byte("\n\n"))
}

// openingFence returns the start of the line before the block content
func openingFence(source []byte, contentStart int) int {
	end := bytes.LastIndexByte(source[:contentStart], '\n')
	if end < 0 {
		return 0
	}
	return bytes.LastIndexByte(source[:end], '\n') + 1
}

// closingFence returns the end of the closing fence line, or of the
// document when the fence was never closed
func closingFence(source []byte, contentStop int) int {
	rest := source[contentStop:]
	line, after, found := bytes.Cut(rest, []byte("\n"))
	fence := strings.TrimSpace(string(line))
	if !strings.HasPrefix(fence, "```") && !strings.HasPrefix(fence, "~~~") {
		return len(source)
	}
	if !found {
		return len(source)
	}
	return len(source) - len(after)
}

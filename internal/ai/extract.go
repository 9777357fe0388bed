package ai

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// embedInputLimit bounds the text sent to the embedding provider.
const embedInputLimit = 8000

// PlainText strips markdown structure down to the readable text,
// keeping code block contents.
func PlainText(markdown string) string {
	md := goldmark.New()
	source := []byte(markdown)
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var parts []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.FencedCodeBlock:
			var code strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				code.Write(line.Value(source))
			}
			if snippet := strings.TrimSpace(code.String()); snippet != "" {
				parts = append(parts, snippet)
			}
		default:
			if txt := nodeText(node, source); txt != "" {
				parts = append(parts, txt)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// BuildEmbedInput composes the text embedded for a document: title plus
// plain content, truncated on a rune boundary.
func BuildEmbedInput(title, content string) string {
	input := strings.TrimSpace(title + "\n\n" + PlainText(content))
	if len(input) <= embedInputLimit {
		return input
	}
	cut := embedInputLimit
	for cut > 0 && !utf8.RuneStart(input[cut]) {
		cut--
	}
	return input[:cut]
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

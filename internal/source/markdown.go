package source

import (
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/reiness/edos-jls-chatbot/internal/normalize"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// MarkdownExtractor renders Markdown to plain text, one line per block, and
// reports ATX and setext headings explicitly.
type MarkdownExtractor struct{}

func (MarkdownExtractor) Extract(path string) (Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	return markdownDocument(src), nil
}

func markdownDocument(src []byte) Document {
	root := markdown.Parser().Parse(text.NewReader(src))

	var sb strings.Builder
	var headings []string
	headingStart := 0
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		status := ast.WalkContinue
		switch node := n.(type) {
		case *ast.Heading:
			if entering {
				headingStart = sb.Len()
			} else if h := normalize.Normalize(sb.String()[headingStart:]); h != "" {
				headings = append(headings, h)
			}
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					sb.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				sb.Write(node.Label(src))
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					sb.Write(seg.Value(src))
				}
				status = ast.WalkSkipChildren
			}
		case *ast.HTMLBlock, *ast.RawHTML:
			status = ast.WalkSkipChildren
		}
		if !entering && n.Type() == ast.TypeBlock && sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
		return status, nil
	})

	return Document{Text: sb.String(), Headings: headings}
}

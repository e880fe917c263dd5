package content

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/util"
)

// plainText walks a parsed post and returns its readable text. Entities are
// decoded and raw HTML blocks are skipped, so markup never reaches the index.
func plainText(doc ast.Node, source []byte) string {
	var out strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n.Kind() {
		case ast.KindText:
			out.Write(decodeText(n.(*ast.Text).Segment.Value(source)))
			out.WriteByte(' ')
		case ast.KindString:
			out.Write(decodeText(n.(*ast.String).Value))
			out.WriteByte(' ')
		case ast.KindCodeBlock, ast.KindFencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				out.Write(line.Value(source))
			}
			out.WriteByte(' ')
		case ast.KindHeading, ast.KindParagraph:
			out.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(out.String())
}

func decodeText(b []byte) []byte {
	return util.ResolveEntityNames(util.ResolveNumericReferences(util.UnescapePunctuations(b)))
}

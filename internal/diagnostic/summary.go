package diagnostic

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/spherical/pdf-compiler/internal/domain"
)

// maxSummaryRunes caps the detail attached to a rejected request.
const maxSummaryRunes = 200

var skippedElements = map[string]bool{
	"head":   true,
	"script": true,
	"style":  true,
}

// Summary returns the visible text of a non-log body on one line, cut to a
// length suitable for an error message. It returns "" when nothing readable
// remains.
func Summary(body []byte, kind domain.BodyKind) string {
	var text string
	if kind == domain.BodyHTMLPage {
		text = visibleText(body)
	} else {
		text = string(bytes.ToValidUTF8(body, []byte("?")))
	}

	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > maxSummaryRunes {
		runes := []rune(text)
		text = string(runes[:maxSummaryRunes]) + "..."
	}
	return text
}

func visibleText(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var sb strings.Builder
	collectVisible(doc, &sb, 0)
	return sb.String()
}

func collectVisible(n *html.Node, sb *strings.Builder, depth int) {
	if depth > maxDepth {
		return
	}
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
	case html.ElementNode:
		if skippedElements[n.Data] {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectVisible(c, sb, depth+1)
	}
}

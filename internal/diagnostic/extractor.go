// Package diagnostic turns failure bodies into human-readable compilation logs.
package diagnostic

import (
	"bytes"
	"encoding/base64"
	"strings"

	"golang.org/x/net/html"

	"github.com/spherical/pdf-compiler/internal/domain"
)

// Placeholders returned when a log cannot be recovered from the body.
const (
	UndecodableLog = "Compilation log could not be decoded."
	NoLogInPage    = "Could not extract a specific log from the error page."
	EmptyLog       = "The compilation service reported a failure without a log."
)

// maxDepth bounds the walk over hostile or broken markup.
const maxDepth = 256

// Extractor implements domain.Extractor. It never fails: every body yields
// either the recovered log or a fixed placeholder.
type Extractor struct{}

// New creates an Extractor
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the log carried by d with surrounding whitespace removed
func (e *Extractor) Extract(d domain.Diagnostic) string {
	var text string
	switch d.Kind {
	case domain.BodyEncodedBlob:
		if len(bytes.TrimSpace(d.Body)) == 0 {
			return EmptyLog
		}
		decoded, ok := decodeBlob(d.Body)
		if !ok {
			return UndecodableLog
		}
		text = decoded
	case domain.BodyHTMLPage:
		pre, ok := firstPre(d.Body)
		if !ok {
			return NoLogInPage
		}
		return pre
	default:
		text = string(d.Body)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return EmptyLog
	}
	return text
}

func decodeBlob(body []byte) (string, bool) {
	compact := bytes.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, body)
	if len(compact) == 0 {
		return "", false
	}

	out := make([]byte, base64.StdEncoding.DecodedLen(len(compact)))
	n, err := base64.StdEncoding.Decode(out, compact)
	if err != nil {
		out = make([]byte, base64.RawStdEncoding.DecodedLen(len(compact)))
		n, err = base64.RawStdEncoding.Decode(out, compact)
		if err != nil {
			return "", false
		}
	}
	return string(out[:n]), true
}

// firstPre returns the text of the first <pre> element with surrounding
// whitespace removed. Entities are already decoded by the parser.
func firstPre(body []byte) (string, bool) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", false
	}

	pre := findElement(doc, "pre", 0)
	if pre == nil {
		return "", false
	}

	var sb strings.Builder
	collectText(pre, &sb, 0)
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", false
	}
	return text, true
}

func findElement(n *html.Node, tag string, depth int) *html.Node {
	if depth > maxDepth {
		return nil
	}
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag, depth+1); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > maxDepth {
		return
	}
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
	case html.ElementNode:
		if n.Data == "br" {
			sb.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb, depth+1)
	}
}

var _ domain.Extractor = (*Extractor)(nil)

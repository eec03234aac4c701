// Package langid identifies the language of article text.
package langid

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Unknown is the code reported when text could not be classified.
const Unknown = "unknown"

// Outcome separates a confident detection from a refusal to classify.
type Outcome int

const (
	Detected Outcome = iota
	Undetermined
)

// Result is a single identification.
type Result struct {
	Code       string
	Outcome    Outcome
	Confidence float64
}

// Undetected is the result for text that could not be classified.
func Undetected() Result {
	return Result{Code: Unknown, Outcome: Undetermined}
}

// Identifier returns the best-guess language of a text. An error means the
// identifier itself is unavailable, not that the text was unclassifiable.
type Identifier interface {
	Identify(ctx context.Context, text string) (Result, error)
}

// Func adapts a plain function to the Identifier interface.
type Func func(ctx context.Context, text string) (Result, error)

// Identify calls f.
func (f Func) Identify(ctx context.Context, text string) (Result, error) {
	return f(ctx, text)
}

// Prepare strips markup, normalizes to NFC and collapses whitespace so
// detectors see the same text regardless of how it was scraped.
func Prepare(text string) string {
	text = StripMarkup(text)
	text = norm.NFC.String(text)
	return strings.Join(strings.Fields(text), " ")
}

// StripMarkup returns the text content of an HTML fragment. Plain text
// passes through unchanged.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var buf strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
	}
	extractText(doc)

	return strings.TrimSpace(buf.String())
}

// countLetters counts letter runes.
func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

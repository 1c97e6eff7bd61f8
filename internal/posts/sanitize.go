package posts

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockElements = "p, div, li, pre, blockquote, h1, h2, h3, h4, h5, h6, tr"

// plainText reduces pasted markup to its visible text. Block elements and
// <br> become line breaks; script and style bodies are dropped. Input is
// only treated as markup when it closes an element, so prose and code such
// as "a<b" or "vector<int>" are stored as typed.
func plainText(s string) (string, error) {
	if !looksLikeMarkup(s) {
		return strings.TrimSpace(s), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return "", fmt.Errorf("failed to parse input: %w", err)
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockElements).AppendHtml("\n")

	lines := strings.Split(doc.Text(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n"), nil
}

func looksLikeMarkup(s string) bool {
	return strings.Contains(s, "</") || strings.Contains(s, "/>")
}

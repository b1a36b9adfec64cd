package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// nodeText flattens the text under n, one space between runs of whitespace.
func nodeText(n *html.Node) string {
	var b strings.Builder
	collectText(n, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func collectText(n *html.Node, b *strings.Builder) {
	if n == nil {
		return
	}
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "br" {
			b.WriteByte(' ')
		}
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
	if n.Type == html.ElementNode && (n.Data == "p" || n.Data == "div" || n.Data == "td" || n.Data == "th") {
		b.WriteByte(' ')
	}
}

// text returns the normalized text of every node in sel.
func text(sel *goquery.Selection) string {
	parts := make([]string, 0, sel.Length())
	for _, n := range sel.Nodes {
		if t := nodeText(n); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func tagName(sel *goquery.Selection) string {
	return goquery.NodeName(sel)
}

// cellTexts returns the text of each element in sel.
func cellTexts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	for _, cell := range sel.EachIter() {
		out = append(out, text(cell))
	}
	return out
}

func hasMarker(sel *goquery.Selection, attr, marker string) bool {
	if marker == "" {
		return false
	}
	v, _ := sel.Attr(attr)
	return strings.Contains(v, marker)
}

package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SimplifyDOM produces a token-efficient representation of a rendered page
// for selector discovery: the <body> subtree with script, style and svg
// nodes removed. This is a pure transformation with no content scoring or
// heuristics, so sparse data regions (holdings tables, figure callouts)
// survive intact.
//
// If the markup cannot be parsed, the input is returned unchanged so the
// discovery stage still has something to work with.
func SimplifyDOM(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}

	doc.Find("script, style, svg").Remove()

	body := doc.Find("body")
	if body.Length() > 0 {
		if h, err := goquery.OuterHtml(body.First()); err == nil {
			return h
		}
	}

	h, err := doc.Html()
	if err != nil {
		return rawHTML
	}
	return h
}

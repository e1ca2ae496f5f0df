package cleaner

import (
	"bytes"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ValidateSelector reports whether s is a syntactically valid CSS selector.
// The pipeline rejects AI-proposed selectors that cascadia cannot parse
// before spending a focused render on them.
func ValidateSelector(s string) error {
	_, err := cascadia.Parse(s)
	return err
}

// SelectOne parses rawHTML, matches the first element against the given CSS
// selector, and returns its outer HTML. Returns "" when nothing matches.
func SelectOne(rawHTML string, selector string) (string, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return "", err
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	node := cascadia.Query(doc, sel)
	if node == nil {
		return "", nil
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

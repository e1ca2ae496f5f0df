package cleaner

import "unicode/utf8"

// EstimateTokens provides a fast token count estimate without a tokenizer
// dependency: utf8 rune count / 3. English averages ~4 chars/token and CJK
// ~1.5, so dividing by 3 slightly over-estimates for mostly-English fund
// pages. Used only for logging how much the DOM simplification saved.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	est := n / 3
	if est < 1 {
		return 1
	}
	return est
}

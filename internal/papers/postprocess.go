package papers

import "regexp"

var (
	texBacktickPattern      = regexp.MustCompile("^`(\\$.*?\\$)`$")
	markdownFencePattern    = regexp.MustCompile("(?s)```markdown(.*)```")
	singleQuoteFencePattern = regexp.MustCompile(`(?s)'''(.*)'''`)
)

// removeTeXBackticks strips the outer backticks from a string of the
// form `$...$`, leaving the TeX expression itself. Anything else is
// returned unchanged.
func removeTeXBackticks(text string) string {
	return texBacktickPattern.ReplaceAllString(text, "$1")
}

// removeOuterMarkdownMarkers removes an outermost "```markdown" fence and
// its farthest closing "```", keeping any fences inside the block.
func removeOuterMarkdownMarkers(text string) string {
	return markdownFencePattern.ReplaceAllString(text, "$1")
}

// removeOuterSingleQuotes removes an outermost "'''" fence pair the same
// way, keeping inner occurrences.
func removeOuterSingleQuotes(text string) string {
	return singleQuoteFencePattern.ReplaceAllString(text, "$1")
}

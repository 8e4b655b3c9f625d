package papers

import "strings"

const (
	// minBodyLineLength drops navigation crumbs and stray labels.
	minBodyLineLength = 40
	// minStartLineLength marks where prose plausibly begins.
	minStartLineLength = 100
)

// affiliationKeywords flag author-block lines that precede the body.
var affiliationKeywords = []string{
	"university",
	"lab",
	"department",
	"institute",
	"corresponding author",
}

// isValidBodyLine reports whether a line reads like paper prose: long
// enough, no email address, no affiliation keyword, and containing a
// sentence-ending period.
func isValidBodyLine(line string, minLength int) bool {
	if strings.Contains(line, "@") {
		return false
	}
	lower := strings.ToLower(line)
	for _, kw := range affiliationKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	if len(line) < minLength {
		return false
	}
	return strings.Contains(line, ".")
}

// filterBodyLines finds the first prose-looking line, drops everything
// before it, and keeps only lines long enough to carry content. "Â"
// artifacts from mojibake'd non-breaking spaces are cleaned up.
func filterBodyLines(lines []string) string {
	start := 0
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) < minBodyLineLength {
			continue
		}
		if isValidBodyLine(line, minStartLineLength) {
			start = i
			break
		}
	}

	var filtered []string
	for _, line := range lines[start:] {
		line = strings.TrimSpace(line)
		if len(line) < minBodyLineLength {
			continue
		}
		line = strings.ReplaceAll(line, "Â", " ")
		filtered = append(filtered, strings.TrimSpace(line))
	}
	return strings.Join(filtered, "\n")
}

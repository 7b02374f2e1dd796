package diagnosis

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// typoTolerance is the share of the mean identifier length that may differ
// for two names to count as a typo of each other.
const typoTolerance = 0.15

// Position addresses a point in the source. Col is a byte offset into Line;
// for scan results it points just past the last byte consumed.
type Position struct {
	Line int
	Col  int
}

// ClosingParen scans lines from start, tracking parenthesis depth outside of
// string literals. With stopAtClose the scan ends at the parenthesis that
// balances the first opening one; the returned body then holds everything
// before it. Without stopAtClose the whole remaining text is scanned and only
// the overall balance matters. ok is false when the parentheses never balance.
func ClosingParen(lines []string, start int, stopAtClose bool) (body string, pos Position, ok bool) {
	var b strings.Builder
	opens, closes := 0, 0
	inString := false
	closed := false

	for i := max(start, 0); i < len(lines); i++ {
		pos = Position{Line: i}
		for j, c := range lines[i] {
			pos.Col = j + utf8.RuneLen(c)
			if c == '"' || c == '\'' {
				inString = !inString
			}
			if c == ')' && !inString {
				closes++
				if closes == opens && stopAtClose {
					closed = true
					break
				}
				b.WriteRune(c)
				continue
			}
			if c == '\n' {
				continue
			}
			b.WriteRune(c)
			if c == '(' && !inString {
				opens++
			}
		}
		if closed {
			break
		}
	}
	if closed || opens == closes {
		return b.String(), pos, true
	}
	return "", Position{}, false
}

// IsTypo reports whether original is a near miss of target. Identical names
// are never typos. Longer names tolerate proportionally more edits.
func IsTypo(original, target string) bool {
	if original == target {
		return false
	}
	mean := float64(utf8.RuneCountInString(original)+utf8.RuneCountInString(target)) / 2
	threshold := int(math.Ceil(mean * typoTolerance))
	return fuzzy.LevenshteinDistance(original, target) <= threshold
}

// CleanupListsAndObjects rewrites list and object literals so that splitting
// an argument string on commas keeps each literal in one piece. Brackets
// become OPENBRACE and CLOSEBRACE and commas inside them become '|'.
func CleanupListsAndObjects(s string) string {
	var b strings.Builder
	depth := 0
	for _, c := range s {
		switch c {
		case '[', '{':
			depth++
			b.WriteString("OPENBRACE")
		case ']', '}':
			if depth > 0 {
				depth--
			}
			b.WriteString("CLOSEBRACE")
		case ',':
			if depth > 0 {
				b.WriteByte('|')
			} else {
				b.WriteByte(',')
			}
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// countParens counts opening and closing parentheses anywhere in s.
func countParens(s string) (int, int) {
	return strings.Count(s, "("), strings.Count(s, ")")
}

// nextNonBlank returns the first non-empty line after idx, or "".
func nextNonBlank(lines []string, idx int) string {
	for i := idx + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

// firstQuoted returns the text between the first pair of single quotes.
func firstQuoted(s string) string {
	parts := strings.Split(s, "'")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}

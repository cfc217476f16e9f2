// Package normalize cleans raw extracted document text and finds heading-like
// lines used to label passages with a section name.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	runOfNewlines   = regexp.MustCompile(`\n{3,}`)
	runOfWhitespace = regexp.MustCompile(`[\s\v\p{Z}\x{85}]+`)
)

// Normalize turns carriage returns into newlines, squeezes 3+ newlines to two,
// collapses every whitespace run to a single space and trims the result.
// It never fails and is deterministic.
func Normalize(raw string) string {
	s := strings.ReplaceAll(raw, "\r", "\n")
	s = runOfNewlines.ReplaceAllString(s, "\n\n")
	s = runOfWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

const (
	maxHeadingChars = 200
	maxHeadingWords = 8
)

// LooksLikeHeading reports whether line is short, has few words, and is
// written in upper case or title case. False positives are acceptable.
func LooksLikeHeading(line string) bool {
	if utf8.RuneCountInString(line) >= maxHeadingChars {
		return false
	}
	if len(strings.Fields(line)) > maxHeadingWords {
		return false
	}
	return isUpper(line) || isTitle(line)
}

// isUpper reports whether s has at least one cased rune and none in lower case.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) || unicode.IsTitle(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// isTitle reports whether s is cased and each word starts upper case and
// continues lower case.
func isTitle(s string) bool {
	cased, prevCased := false, false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			if prevCased {
				return false
			}
			prevCased, cased = true, true
		case unicode.IsLower(r):
			if !prevCased {
				return false
			}
			prevCased, cased = true, true
		default:
			prevCased = false
		}
	}
	return cased
}

// LineHeadings returns the lines of raw text that look like headings, in order,
// each normalized.
func LineHeadings(raw string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if LooksLikeHeading(line) {
			out = append(out, Normalize(line))
		}
	}
	return out
}

package composer

import "strings"

// DefaultSnippetLength is the citation snippet length in characters.
const DefaultSnippetLength = 350

// Snippet flattens text onto one line and cuts it to at most n characters.
// An ellipsis marks text that does not end in sentence punctuation.
func Snippet(text string, n int) string {
	s := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
	if r := []rune(s); len(r) > n {
		s = string(r[:n])
	}
	s = strings.TrimRight(s, " ")
	if s == "" || !strings.ContainsAny(s[len(s)-1:], ".!?") {
		s += "..."
	}
	return s
}

// Package urls finds http(s) links in chat text.
package urls

import (
	"regexp"
	"strings"
)

// pattern captures an optional opening parenthesis so that links written as
// "(https://...)" can be unwrapped afterwards.
var pattern = regexp.MustCompile(`(?i)\(?https?://(www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b([-a-zA-Z0-9()@:%_+.~#?&/=]*)`)

// Extract returns every link in text in order of appearance, duplicates
// included. A match that both starts with "(" and ends with ")" loses exactly
// one parenthesis on each side; any other match is returned as is, so a
// closing parenthesis that belongs to the sentence stays attached.
func Extract(text string) []string {
	matches := pattern.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.HasPrefix(m, "(") && strings.HasSuffix(m, ")") {
			m = m[1 : len(m)-1]
		}
		out = append(out, m)
	}
	return out
}

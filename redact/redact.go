// Package redact strips user identifiers from chat text before it is archived.
package redact

import "regexp"

// Placeholder replaces every user mention.
const Placeholder = "(user)"

var mention = regexp.MustCompile(`<@(\d+)>`)

// Redact replaces each user-mention token (<@digits>) with Placeholder.
func Redact(text string) string {
	return mention.ReplaceAllLiteralString(text, Placeholder)
}

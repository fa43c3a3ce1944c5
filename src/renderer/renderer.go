// Package renderer turns reports into markdown documents.
package renderer

import "strings"

// cell escapes text placed in a table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

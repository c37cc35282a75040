package models

import (
	"strings"
	"unicode"
)

// ShellMeta holds the characters the shell would interpret.
const ShellMeta = ";|&$<>`\\\"'(){}[]*?!#~"

// IsSingleToken reports whether s can be passed as one argv element
// without being taken for a flag. Targets and workspace names follow it.
func IsSingleToken(s string) bool {
	if s == "" || strings.HasPrefix(s, "-") {
		return false
	}
	return !strings.ContainsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune(ShellMeta, r)
	})
}

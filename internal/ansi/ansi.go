// Package ansi strips terminal escape sequences and non-printable bytes
// from shell output before it is compared or displayed.
package ansi

import (
	"strings"
	"unicode"
)

// Strip removes ANSI escape sequences from a string.
func Strip(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		if r == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Sanitize drops control bytes that survive Strip, keeping printable
// characters and ordinary whitespace. Terminals emit stray BEL/backspace
// bytes that would render as tofu in a textarea.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

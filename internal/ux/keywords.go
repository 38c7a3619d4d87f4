package ux

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ExitKeywords end the whole session when they are the entire input.
var ExitKeywords = []string{"exit", "quit", "stop", "bye"}

// Fold normalizes s for caseless comparison.
func Fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// NormalizeIntent cleans up typed or transcribed text: Unicode compatibility
// forms are folded and runs of whitespace collapsed.
func NormalizeIntent(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// IsExitKeyword reports whether input is one of ExitKeywords, ignoring case,
// surrounding whitespace and trailing punctuation.
func IsExitKeyword(input string) bool {
	word := Fold(strings.TrimSpace(input))
	word = strings.TrimRight(word, ".!?")
	for _, kw := range ExitKeywords {
		if word == kw {
			return true
		}
	}
	return false
}

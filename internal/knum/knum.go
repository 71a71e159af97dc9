// Package knum matches FDA device identifiers (K-numbers and DEN numbers)
// in free text. Matching is pure and context-free: callers are responsible
// for excluding a device's own identifier from its predicate list.
package knum

import (
	"regexp"
	"strings"
)

// validPattern matches a well-formed identifier: a K or DEN prefix followed
// by exactly six digits. Input is matched case-insensitively and normalized
// to uppercase on output.
var validPattern = regexp.MustCompile(`(?i)\b(K|DEN)(\d{6})\b`)

// malformedPattern catches OCR artifacts where whitespace was inserted into
// the digit run, e.g. "K12 3456". These are flagged for manual review and
// never auto-corrected.
var malformedPattern = regexp.MustCompile(`(?i)\b(K|DEN)\s*\d[\s\d]{5,8}`)

var exactValid = regexp.MustCompile(`^(K|DEN)\d{6}$`)

// Valid reports whether id is a well-formed device identifier after
// uppercasing. It does not trim or otherwise repair the input.
func Valid(id string) bool {
	return exactValid.MatchString(strings.ToUpper(id))
}

// Normalize uppercases an identifier. It does not validate.
func Normalize(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// FindIdentifiers extracts device identifiers from text. The first return
// value holds well-formed identifiers in first-occurrence order with
// duplicates removed. The second holds malformed candidates: patterns that
// look like an identifier with whitespace interleaved in the digits but do
// not reduce to an already-matched valid identifier.
func FindIdentifiers(text string) (valid []string, malformed []string) {
	seen := make(map[string]struct{})
	for _, m := range validPattern.FindAllString(text, -1) {
		id := strings.ToUpper(m)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		valid = append(valid, id)
	}

	seenMalformed := make(map[string]struct{})
	for _, m := range malformedPattern.FindAllString(text, -1) {
		candidate := strings.TrimSpace(m)
		// A clean candidate that is itself a valid identifier was already
		// captured by the valid pass; the looser pattern grabs those too.
		hasSpace := stripSpaces(candidate) != candidate
		if !hasSpace && exactValid.MatchString(strings.ToUpper(candidate)) {
			continue
		}
		if _, ok := seenMalformed[candidate]; ok {
			continue
		}
		seenMalformed[candidate] = struct{}{}
		malformed = append(malformed, candidate)
	}

	return valid, malformed
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, s)
}

package normalize

import (
	"strings"
	"unicode"
)

// Phone canonicalizes a phone number for comparison. Whitespace, hyphens and
// parentheses are removed along with a leading "+".
func Phone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) || r == '-' || r == '(' || r == ')' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimPrefix(b.String(), "+")
}

// PhonesEqual reports whether two phone values share a normalized form.
func PhonesEqual(a, b string) bool {
	return Phone(a) == Phone(b)
}

// PhoneCandidates returns the forms a stored phone may have been written in,
// normalized first. Historical records are not always normalized.
func PhoneCandidates(raw string) []string {
	normalized := Phone(raw)
	if normalized == "" {
		return nil
	}
	trimmed := strings.TrimSpace(raw)

	candidates := []string{normalized}
	if trimmed != normalized {
		candidates = append(candidates, trimmed)
	}
	return candidates
}

// ID trims an opaque identifier.
func ID(raw string) string {
	return strings.TrimSpace(raw)
}

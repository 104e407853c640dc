package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FallbackField is the name given to an absent header.
const FallbackField = "field"

// NormalizeHeader turns a raw column label into a bare identifier matching
// ^[a-z][a-z0-9_]*$.
//
// Diacritics are stripped after NFD decomposition, anything that is not an
// ASCII letter, digit, underscore or space is dropped, space runs become a
// single underscore and the result is lowercased. Underscores are kept as
// they are, so normalizing a normalized name returns it unchanged. Names that do not start with a
// letter get an "f_" prefix, so a header made only of symbols ("#") yields
// plain "f_". Two such headers collide; the synthesizer keeps the first.
func NormalizeHeader(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return FallbackField
	}

	s = stripMarks(s)

	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
			inSpace = false
		case r == '_':
			b.WriteByte('_')
			inSpace = false
		case r == ' ':
			// Only the plain space survives the filter; a run of them
			// (even one left behind by dropped symbols) becomes one "_".
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
		}
	}
	s = b.String()

	if s == "" || s[0] < 'a' || s[0] > 'z' {
		s = "f_" + s
	}
	return s
}

// stripMarks removes combining diacritical marks after canonical decomposition.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

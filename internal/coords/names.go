package coords

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Connecting words kept lowercase when they are not the first word.
var particles = map[string]struct{}{
	"de":  {},
	"del": {},
	"d'":  {},
	"la":  {},
	"les": {},
	"i":   {},
	"al":  {},
	"en":  {},
	"per": {},
}

// FormatName canonicalises a user supplied location name. The first word
// gets its leading letter title-cased and keeps the rest untouched; later
// words are lower-cased when they are particles, kept as typed when they
// already carry an inner capital, and title-cased otherwise.
func FormatName(raw string) string {
	words := strings.Fields(raw)
	if len(words) == 0 {
		return ""
	}
	// Title case maps single letters such as ß or ǆ to Ss and ǅ,
	// where upper case would give SS and Ǆ.
	title := cases.Title(language.Und, cases.NoLower)
	lower := cases.Lower(language.Und)

	out := make([]string, len(words))
	for i, w := range words {
		first, rest := splitFirstRune(w)
		switch {
		case i == 0:
			out[i] = title.String(first) + rest
		case isParticle(lower.String(w)):
			out[i] = lower.String(w)
		case hasInnerUpper(rest):
			out[i] = w
		default:
			out[i] = title.String(first) + lower.String(rest)
		}
	}
	return strings.Join(out, " ")
}

func isParticle(w string) bool {
	_, ok := particles[w]
	return ok
}

func splitFirstRune(w string) (string, string) {
	_, size := utf8.DecodeRuneInString(w)
	return w[:size], w[size:]
}

func hasInnerUpper(rest string) bool {
	for _, r := range rest {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// foldKey is the case-insensitive comparison key used by Suggest.
func foldKey(s string) string {
	return cases.Fold().String(s)
}

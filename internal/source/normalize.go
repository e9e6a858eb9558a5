package source

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// deaccent strips combining marks after canonical decomposition.
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// legalSuffixes are trailing tokens that carry no identity signal.
var legalSuffixes = []string{
	"llc", "inc", "co", "corp", "ltd", "llp", "pllc", "pc", "company", "incorporated",
}

// normalizeName lowercases, strips accents and punctuation, and drops legal
// suffixes so "José's Roofing, LLC" and "Joses Roofing" compare equal.
func normalizeName(name string) string {
	if out, _, err := transform.String(deaccent, name); err == nil {
		name = out
	}
	name = strings.ToLower(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '/':
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	for len(tokens) > 0 && isLegalSuffix(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

func isLegalSuffix(token string) bool {
	for _, s := range legalSuffixes {
		if token == s {
			return true
		}
	}
	return false
}

// namesMatch reports whether two business names refer to the same entity
// after normalization. Containment covers "ABC Roofing" vs
// "ABC Roofing of Austin".
func namesMatch(a, b string) bool {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}

// normalizePhone keeps only digits and trims to the last ten, dropping
// country codes and formatting.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}

// phonesMatch reports whether two phone numbers share the same ten
// significant digits. Empty input never matches.
func phonesMatch(a, b string) bool {
	na, nb := normalizePhone(a), normalizePhone(b)
	return na != "" && na == nb
}

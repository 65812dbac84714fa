package extractor

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeKey turns a human label into a record key: the label is folded to
// NFKC (full-width colons and no-break spaces become their ASCII forms),
// surrounding whitespace and trailing colons are removed, the result is lowercased and internal
// whitespace runs collapse to a single underscore.
//
//	"Enrolled Since:" -> "enrolled_since"
//	"  E-mail  Address :" -> "e-mail_address"
//
// NormalizeKey(NormalizeKey(s)) == NormalizeKey(s) for every s.
func NormalizeKey(label string) string {
	s := strings.TrimRightFunc(norm.NFKC.String(label), func(r rune) bool {
		return r == ':' || unicode.IsSpace(r)
	})
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}

package policy

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lower-cases s, strips diacritics and collapses whitespace so that
// "Müller  Drogerie" and "muller drogerie" compare equal. Transformers and
// casers carry state, so they are built per call.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = cases.Fold().String(out)
	return strings.Join(strings.Fields(out), " ")
}

// tokenize splits folded text into words, numbers and single currency
// symbols. "12,50€ Rewe" becomes ["12,50", "€", "rewe"].
func tokenize(s string) []string {
	var (
		out []string
		cur strings.Builder
		cls int
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range fold(s) {
		var c int
		switch {
		case unicode.IsSpace(r):
			flush()
			cls = 0
			continue
		case unicode.Is(unicode.Sc, r):
			flush()
			out = append(out, string(r))
			cls = 0
			continue
		case unicode.IsDigit(r), (r == ',' || r == '.' || r == '\'') && cls == 1:
			c = 1
		case r == '-' && cur.Len() == 0:
			c = 1
		default:
			c = 2
		}
		if c != cls {
			flush()
		}
		cls = c
		cur.WriteRune(r)
	}
	flush()

	for i, tok := range out {
		out[i] = strings.TrimRight(tok, ",.'")
		if out[i] == "" {
			out[i] = tok
		}
	}
	return out
}

func isNumber(tok string) bool {
	tok = strings.TrimPrefix(tok, "-")
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if !unicode.IsDigit(r) && r != ',' && r != '.' && r != '\'' {
			return false
		}
	}
	return true
}

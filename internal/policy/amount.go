package policy

import (
	"regexp"
	"strings"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/shopspring/decimal"
)

var numberRe = regexp.MustCompile(`\d[\d.,']*\d|\d`)

// ParseAmount reads a locale-agnostic money amount: "45", "12,50", "12.50",
// "1.234,56", "1,234.56", "1'234.50", with or without a currency symbol.
// The result is rounded to cents.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	m := numberRe.FindStringIndex(s)
	if m == nil {
		return decimal.Zero, domain.NewNormalizationError(domain.MissingAmount, s)
	}

	digits := strings.ReplaceAll(s[m[0]:m[1]], "'", "")
	v, err := decimal.NewFromString(canonicalSeparators(digits))
	if err != nil {
		return decimal.Zero, domain.NewNormalizationError(domain.MissingAmount, s)
	}

	if negativePrefix(s[:m[0]]) || v.IsNegative() {
		return decimal.Zero, domain.NewNormalizationError(domain.NegativeAmount, s)
	}

	return v.Round(2), nil
}

func negativePrefix(prefix string) bool {
	return strings.ContainsAny(prefix, "-−")
}

// canonicalSeparators rewrites s so that "." is the only separator and marks
// the decimal point. The last separator is decimal unless it is followed by
// exactly three digits and is the only separator kind present.
func canonicalSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		return decimalOrThousands(s, ",")
	case lastDot >= 0:
		return decimalOrThousands(s, ".")
	}
	return s
}

func decimalOrThousands(s, sep string) string {
	parts := strings.Split(s, sep)
	if len(parts) > 2 {
		return strings.Join(parts, "")
	}
	if len(parts[1]) == 3 && parts[0] != "0" {
		return parts[0] + parts[1]
	}
	return parts[0] + "." + parts[1]
}

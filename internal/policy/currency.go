package policy

import (
	"strings"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/ryanuber/go-glob"
	"github.com/shopspring/decimal"
)

// currencyTokens maps unambiguous folded tokens to ISO codes.
var currencyTokens = map[string]string{
	"€":       "EUR",
	"eur":     "EUR",
	"euro":    "EUR",
	"euros":   "EUR",
	"$":       "USD",
	"usd":     "USD",
	"dollar":  "USD",
	"dollars": "USD",
	"£":       "GBP",
	"gbp":     "GBP",
	"pound":   "GBP",
	"pounds":  "GBP",
	"chf":     "CHF",
	"fr":      "CHF",
	"¥":       "JPY",
	"jpy":     "JPY",
	"yen":     "JPY",
	"zł":      "PLN",
	"zl":      "PLN",
	"pln":     "PLN",
}

// Ambiguous is a token that reads either as a shop or as a legacy currency.
type Ambiguous struct {
	Token    string
	Merchant string
	// Patterns recognise the merchant in a merchant hint.
	Patterns []string
	Category domain.Category
	Legacy   string
}

var DefaultAmbiguous = []Ambiguous{
	{
		Token:    "dm",
		Merchant: "dm-drogerie markt",
		Patterns: []string{"dm", "dm-*", "dm *", "*drogerie*"},
		Category: domain.CategoryHousehold,
		Legacy:   "DEM",
	},
}

// DefaultRates are units of each currency per one euro. DEM is the fixed
// conversion rate of 31 December 1998.
var DefaultRates = map[string]decimal.Decimal{
	"EUR": decimal.NewFromInt(1),
	"USD": decimal.RequireFromString("1.08"),
	"GBP": decimal.RequireFromString("0.85"),
	"CHF": decimal.RequireFromString("0.94"),
	"JPY": decimal.RequireFromString("162"),
	"PLN": decimal.RequireFromString("4.30"),
	"DEM": decimal.RequireFromString("1.95583"),
}

// CurrencyRule records which priority rule decided the currency.
type CurrencyRule int

const (
	RuleExplicitSymbol CurrencyRule = iota + 1
	RuleMerchantMatch
	RuleLegacyFallback
	RuleReportingDefault
)

func (r CurrencyRule) String() string {
	switch r {
	case RuleExplicitSymbol:
		return "explicit-symbol"
	case RuleMerchantMatch:
		return "merchant-match"
	case RuleLegacyFallback:
		return "legacy-fallback"
	case RuleReportingDefault:
		return "reporting-default"
	}
	return "unknown"
}

// CurrencyResolution is the outcome of resolving an amount's currency.
type CurrencyResolution struct {
	Rule   CurrencyRule
	Code   string
	Amount decimal.Decimal

	// Merchant and Category are set when an ambiguous token was read as a
	// shop instead of a currency.
	Merchant string
	Category domain.Category
}

// CurrencyToken reports whether tok names a currency. Ambiguous tokens are
// reported with ambiguous set.
func CurrencyToken(tok string) (code string, ambiguous bool, ok bool) {
	t := fold(tok)
	if code, ok := currencyTokens[t]; ok {
		return code, false, true
	}
	for _, a := range DefaultAmbiguous {
		if t == a.Token {
			return a.Legacy, true, true
		}
	}
	return "", false, false
}

// resolveCurrency applies the priority list:
//  1. an explicit currency symbol or code,
//  2. an ambiguous token whose merchant is confirmed by the context,
//  3. the ambiguous token's legacy currency,
//  4. the reporting currency.
func (p *Policy) resolveCurrency(amount decimal.Decimal, hint, merchant, category, note, text string) (CurrencyResolution, error) {
	tokens := append(tokenize(hint), tokenize(text)...)

	var (
		explicit  string
		ambiguous *Ambiguous
	)
	for _, tok := range tokens {
		if code, ok := currencyTokens[tok]; ok && explicit == "" {
			explicit = code
			continue
		}
		for i := range p.ambiguous {
			if tok == p.ambiguous[i].Token && ambiguous == nil {
				ambiguous = &p.ambiguous[i]
			}
		}
	}

	res := CurrencyResolution{}
	if ambiguous != nil && (explicit != "" || p.confirmsMerchant(*ambiguous, merchant, category, note, text)) {
		res.Merchant = ambiguous.Merchant
		res.Category = ambiguous.Category
	}

	switch {
	case explicit != "":
		res.Rule, res.Code = RuleExplicitSymbol, explicit
	case ambiguous != nil && res.Merchant != "":
		res.Rule, res.Code = RuleMerchantMatch, p.reporting
	case ambiguous != nil:
		res.Rule, res.Code = RuleLegacyFallback, ambiguous.Legacy
	default:
		res.Rule, res.Code = RuleReportingDefault, p.reporting
	}

	converted, err := p.convert(amount, res.Code)
	if err != nil {
		return CurrencyResolution{}, err
	}
	res.Amount = converted
	return res, nil
}

// confirmsMerchant reports whether anything besides the token itself points
// at the ambiguous token's merchant: the merchant hint names it, or the
// remaining words classify into its category.
func (p *Policy) confirmsMerchant(a Ambiguous, merchant, category, note, text string) bool {
	m := fold(merchant)
	if m != "" && m != a.Token {
		for _, pattern := range a.Patterns {
			if glob.Glob(pattern, m) {
				return true
			}
		}
	}

	context := strings.Join(withoutToken(tokenize(note+" "+text+" "+merchant), a.Token), " ")
	c := p.classifier.Classify("", context, category)
	return c.Category == a.Category
}

func withoutToken(tokens []string, token string) []string {
	out := tokens[:0:0]
	for _, t := range tokens {
		if t == token || isNumber(t) {
			continue
		}
		if _, ok := currencyTokens[t]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (p *Policy) convert(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	if code == p.reporting {
		return amount.Round(2), nil
	}
	from, ok := p.rates[code]
	to, okTo := p.rates[p.reporting]
	if !ok || !okTo || from.IsZero() {
		return decimal.Zero, domain.NewNormalizationError(domain.UnsupportedCurrency, code)
	}
	return amount.Div(from).Mul(to).Round(2), nil
}

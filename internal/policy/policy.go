package policy

import (
	"strings"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Config struct {
	// ReportingCurrency is the ISO code every amount is stored in.
	ReportingCurrency string
	// Rates are units of each currency per one unit of the rate base.
	Rates             map[string]decimal.Decimal
	CategoryThreshold float64
	Rules             []Rule
	Ambiguous         []Ambiguous
}

func DefaultConfig() Config {
	return Config{
		ReportingCurrency: "EUR",
		Rates:             DefaultRates,
		CategoryThreshold: 0.5,
		Rules:             DefaultRules,
		Ambiguous:         DefaultAmbiguous,
	}
}

// Policy turns raw extractions into typed records. It is safe for
// concurrent use.
type Policy struct {
	reporting  string
	rates      map[string]decimal.Decimal
	ambiguous  []Ambiguous
	classifier *Classifier
}

func New(cfg Config) *Policy {
	def := DefaultConfig()
	if cfg.ReportingCurrency == "" {
		cfg.ReportingCurrency = def.ReportingCurrency
	}
	if cfg.Rates == nil {
		cfg.Rates = def.Rates
	}
	if cfg.Rules == nil {
		cfg.Rules = def.Rules
	}
	if cfg.Ambiguous == nil {
		cfg.Ambiguous = def.Ambiguous
	}

	return &Policy{
		reporting:  strings.ToUpper(cfg.ReportingCurrency),
		rates:      cfg.Rates,
		ambiguous:  cfg.Ambiguous,
		classifier: NewClassifier(cfg.Rules, cfg.CategoryThreshold),
	}
}

func (p *Policy) Classifier() *Classifier { return p.classifier }

// NormalizeExpense canonicalizes amount and currency, classifies the category
// and resolves the date of a raw expense extraction.
func (p *Policy) NormalizeExpense(raw domain.RawExtraction, actor string) (domain.Expense, error) {
	amount, err := ParseAmount(raw.Amount)
	if err != nil {
		return domain.Expense{}, err
	}

	cur, err := p.resolveCurrency(amount, raw.Currency+" "+raw.Amount, raw.Merchant, raw.Category, raw.Note, raw.Text)
	if err != nil {
		return domain.Expense{}, err
	}

	merchant := strings.TrimSpace(raw.Merchant)
	hint := raw.Category
	if cur.Merchant != "" {
		if merchant == "" || fold(merchant) == "dm" || cur.Rule == RuleMerchantMatch {
			merchant = cur.Merchant
		}
		if hint == "" {
			hint = string(cur.Category)
		}
	}

	note := strings.TrimSpace(raw.Note)
	category := p.classifier.Classify(merchant, note, hint)

	d, err := ResolveDate(raw.Date, raw.ReferenceDate)
	if err != nil {
		return domain.Expense{}, err
	}
	ref := raw.ReferenceDate
	d = time.Date(d.Year(), d.Month(), d.Day(), ref.Hour(), ref.Minute(), 0, 0, ref.Location())

	log.Debug().
		Str("actor", actor).
		Str("currency_rule", cur.Rule.String()).
		Str("currency", cur.Code).
		Str("category", string(category.Category)).
		Float64("category_score", category.Score).
		Msg("expense normalized")

	return domain.Expense{
		Date:     d,
		Amount:   cur.Amount,
		Category: category.Category,
		Merchant: merchant,
		Note:     note,
		Actor:    actor,
	}, nil
}

// NormalizeGoal resolves target amount and date of a raw goal extraction.
// The goal id is assigned at commit time.
func (p *Policy) NormalizeGoal(raw domain.RawExtraction, actor string) (domain.Goal, error) {
	var target decimal.NullDecimal
	if strings.TrimSpace(raw.TargetAmount) != "" {
		amount, err := p.ParseMoney(raw.TargetAmount, raw.Currency)
		if err != nil {
			return domain.Goal{}, err
		}
		target = decimal.NewNullDecimal(amount)
	}

	targetDate, err := ResolveTargetDate(raw.TargetDate, raw.ReferenceDate)
	if err != nil {
		return domain.Goal{}, err
	}

	return domain.Goal{
		CreatedDate:  day(raw.ReferenceDate),
		Type:         domain.TypeFor(target),
		Name:         strings.TrimSpace(raw.Name),
		TargetAmount: target,
		TargetDate:   targetDate,
		Status:       domain.StatusPending,
		CreatedBy:    actor,
		Notes:        strings.TrimSpace(raw.Note),
	}, nil
}

// ParseMoney reads an amount outside of an expense context, such as a goal
// target or an edited value, and converts it into the reporting currency.
// Without a merchant context an ambiguous token falls back to its legacy
// currency.
func (p *Policy) ParseMoney(amount, currency string) (decimal.Decimal, error) {
	v, err := ParseAmount(amount)
	if err != nil {
		return decimal.Zero, err
	}
	cur, err := p.resolveCurrency(v, currency+" "+amount, "", "", "", "")
	if err != nil {
		return decimal.Zero, err
	}
	return cur.Amount, nil
}

// ResolveTargetDate is ResolveDate for optional dates: an empty phrase means
// no date.
func ResolveTargetDate(phrase string, ref time.Time) (*time.Time, error) {
	if strings.TrimSpace(phrase) == "" {
		return nil, nil
	}
	d, err := ResolveDate(phrase, ref)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

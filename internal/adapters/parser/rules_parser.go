// Package parser is an offline Extractor built from plain text rules. It
// understands short chat messages such as "45 Rewe", "12,50 pizza" or
// "Trip to Japan 5000 by December 2026", and nothing else. Photos are never
// matched.
package parser

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/cp25sy5-modjot/ledger-service/internal/policy"
)

type RulesParser struct {
	classifier *policy.Classifier
}

func NewRulesParser(c *policy.Classifier) *RulesParser { return &RulesParser{classifier: c} }

var (
	numberRe  = regexp.MustCompile(`^-?\d[\d.,']*$`)
	dateRe    = regexp.MustCompile(`^(?:\d{4}-\d{1,2}-\d{1,2}|\d{1,2}[./]\d{1,2}[./]\d{4})$`)
	commandRe = regexp.MustCompile(`^/\w+(?:@\w+)?\s*`)
	deadlines = []string{"by", "until", "till", "before", "in", "on", "bis"}
	dateWords = map[string]bool{"today": true, "yesterday": true, "heute": true, "gestern": true}
)

func (p *RulesParser) Extract(_ context.Context, kind domain.Kind, payload domain.Payload, ref time.Time) (*domain.RawExtraction, error) {
	if payload.IsImage() {
		return nil, nil
	}
	text := normalize(commandRe.ReplaceAllString(strings.TrimSpace(payload.Text), ""))
	if text == "" {
		return nil, nil
	}

	var raw *domain.RawExtraction
	if kind == domain.KindGoal {
		raw = p.parseGoal(text, ref)
	} else {
		raw = p.parseExpense(text)
	}
	if raw == nil {
		return nil, nil
	}
	raw.Kind = kind
	raw.Text = payload.Text
	raw.ReferenceDate = ref
	return raw, nil
}

func (p *RulesParser) parseExpense(text string) *domain.RawExtraction {
	raw := &domain.RawExtraction{}
	var rest []string

	for _, w := range strings.Fields(text) {
		lower := strings.ToLower(w)
		switch {
		case raw.Date == "" && (dateRe.MatchString(w) || dateWords[lower]):
			raw.Date = w
			continue
		case raw.Category == "" && isCategory(w):
			raw.Category = w
			continue
		}

		amount, symbol := splitSymbol(w)
		if raw.Amount == "" && numberRe.MatchString(amount) {
			raw.Amount = amount
			if symbol != "" && raw.Currency == "" {
				raw.Currency = symbol
			}
			continue
		}
		if _, _, ok := policy.CurrencyToken(w); ok && raw.Currency == "" {
			raw.Currency = w
			continue
		}
		rest = append(rest, w)
	}

	if raw.Amount == "" {
		return nil
	}
	raw.Merchant, raw.Note = p.guessMerchant(rest)
	return raw
}

// guessMerchant splits the words around the amount into a known merchant
// and a free note.
func (p *RulesParser) guessMerchant(words []string) (string, string) {
	if len(words) == 0 {
		return "", ""
	}
	for i, w := range words {
		if strings.EqualFold(w, "at") && i+1 < len(words) {
			return strings.Join(words[i+1:], " "), strings.Join(words[:i], " ")
		}
	}
	if _, ok := p.classifier.MerchantName(words[0]); ok {
		return words[0], strings.Join(words[1:], " ")
	}
	all := strings.Join(words, " ")
	if len(words) <= 3 {
		if _, ok := p.classifier.MerchantName(all); ok {
			return all, ""
		}
	}
	return "", all
}

func (p *RulesParser) parseGoal(text string, ref time.Time) *domain.RawExtraction {
	raw := &domain.RawExtraction{}
	words := strings.Fields(text)

	// the first deadline keyword whose tail reads as a date
	for i := 1; i < len(words); i++ {
		if !isDeadline(words[i]) {
			continue
		}
		phrase := strings.Join(words[i:], " ")
		if _, err := policy.ResolveDate(phrase, ref); err == nil {
			raw.TargetDate = phrase
			words = words[:i]
			break
		}
	}
	if raw.TargetDate == "" {
		words = trailingDate(raw, words, ref)
	}

	var name []string
	for _, w := range words {
		amount, symbol := splitSymbol(w)
		if raw.TargetAmount == "" && numberRe.MatchString(amount) {
			raw.TargetAmount = amount
			if symbol != "" {
				raw.Currency = symbol
			}
			continue
		}
		if _, _, ok := policy.CurrencyToken(w); ok && raw.TargetAmount != "" && raw.Currency == "" {
			raw.Currency = w
			continue
		}
		name = append(name, w)
	}

	raw.Name = truncate(strings.TrimRight(strings.Join(name, " "), " ,:-"), 100)
	if raw.Name == "" {
		return nil
	}
	raw.TypeHint = string(domain.GoalTask)
	if raw.TargetAmount != "" {
		raw.TypeHint = string(domain.GoalFinancial)
	}
	return raw
}

// trailingDate looks for a date phrase without a deadline keyword at the end
// of a goal, optionally followed by the amount: "Beach next summer 300". The
// phrase needs at least two words and one of them must not be a number, so
// names and amounts are not read as dates.
func trailingDate(raw *domain.RawExtraction, words []string, ref time.Time) []string {
	end := len(words)
	for end > 1 && isMoney(words[end-1]) {
		end--
	}

	for i := 1; i < len(words); i++ {
		for j := len(words); j >= i+2 && j >= end; j-- {
			span := words[i:j]
			if !hasWord(span) {
				continue
			}
			phrase := strings.Join(span, " ")
			if _, err := policy.ResolveDate(phrase, ref); err != nil {
				continue
			}
			raw.TargetDate = phrase
			rest := make([]string, 0, len(words)-len(span))
			rest = append(rest, words[:i]...)
			return append(rest, words[j:]...)
		}
	}
	return words
}

func isMoney(w string) bool {
	amount, _ := splitSymbol(w)
	if numberRe.MatchString(amount) {
		return true
	}
	_, _, ok := policy.CurrencyToken(w)
	return ok
}

func hasWord(words []string) bool {
	for _, w := range words {
		for _, r := range w {
			if unicode.IsLetter(r) {
				return true
			}
		}
	}
	return false
}

// splitSymbol separates a leading or trailing currency symbol: "€12,50"
// becomes "12,50" and "€".
func splitSymbol(w string) (string, string) {
	if r, size := utf8.DecodeRuneInString(w); unicode.Is(unicode.Sc, r) {
		return w[size:], string(r)
	}
	if r, size := utf8.DecodeLastRuneInString(w); unicode.Is(unicode.Sc, r) {
		return w[:len(w)-size], string(r)
	}
	return w, ""
}

func isCategory(w string) bool {
	c, ok := domain.ParseCategory(w)
	return ok && c != domain.CategoryOther && strings.EqualFold(string(c), w)
}

func isDeadline(w string) bool {
	w = strings.ToLower(w)
	for _, d := range deadlines {
		if w == d {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

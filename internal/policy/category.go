package policy

import (
	"strings"
	"unicode"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/ryanuber/go-glob"
)

// Confidence scores for the category classifier.
const (
	scoreMerchantField = 0.9
	scoreMerchantText  = 0.85
	scoreKeyword       = 0.75
	scoreHint          = 0.6
	scoreAgreement     = 0.1
)

// Rule maps glob patterns to a category. Merchants are shop or service
// names, Keywords describe what was bought. Patterns without a space are
// matched against single words, patterns with a space against the whole
// folded text.
type Rule struct {
	Category  domain.Category
	Merchants []string
	Keywords  []string
}

var DefaultRules = []Rule{
	{
		Category:  domain.CategoryGroceries,
		Merchants: []string{"rewe", "aldi", "lidl", "edeka", "netto", "penny", "kaufland", "tegut", "alnatura", "denns", "spar", "globus", "hit"},
		Keywords:  []string{"groceries", "grocery", "supermarket", "supermarkt", "lebensmittel", "einkauf", "vegetables", "fruit*", "bread", "milk", "eggs", "backerei", "bakery"},
	},
	{
		Category:  domain.CategoryFoodTakeout,
		Merchants: []string{"mcdonald*", "burger king", "lieferando", "wolt", "uber eats", "domino*", "subway", "kfc", "starbucks", "vapiano"},
		Keywords:  []string{"pizza*", "takeout", "takeaway", "take away", "kebab", "doner", "sushi", "burger*", "restaurant", "lunch", "dinner", "coffee", "cafe", "imbiss", "delivery"},
	},
	{
		Category:  domain.CategoryTravel,
		Merchants: []string{"lufthansa", "ryanair", "easyjet", "eurowings", "airbnb", "booking*", "expedia", "flixbus"},
		Keywords:  []string{"flight*", "hotel*", "travel", "vacation", "holiday*", "urlaub", "hostel", "airport", "luggage"},
	},
	{
		Category:  domain.CategorySubscription,
		Merchants: []string{"netflix", "spotify", "disney*", "amazon prime", "apple music", "youtube*", "icloud", "chatgpt", "adobe", "audible"},
		Keywords:  []string{"subscription", "abo", "membership", "monthly plan", "fitnessstudio", "gym"},
	},
	{
		Category:  domain.CategoryInvestment,
		Merchants: []string{"trade republic", "scalable", "comdirect", "degiro", "etoro", "vanguard"},
		Keywords:  []string{"etf*", "stock*", "shares", "invest*", "crypto", "bitcoin", "sparplan", "savings plan", "depot"},
	},
	{
		Category:  domain.CategoryHousehold,
		Merchants: []string{"dm", "dm-*", "rossmann", "muller", "ikea", "obi", "bauhaus", "hornbach", "tedi", "action"},
		Keywords:  []string{"drogerie*", "drugstore", "shampoo", "toothpaste", "soap", "detergent", "cleaning", "toilet*", "furniture", "lamp", "household", "haushalt", "diapers", "windeln"},
	},
	{
		Category:  domain.CategoryTransport,
		Merchants: []string{"bvg", "mvg", "hvv", "db", "uber", "bolt", "free now", "shell", "aral", "esso", "jet"},
		Keywords:  []string{"taxi", "bus", "train", "ticket", "fuel", "petrol", "tanken", "parking", "metro", "ubahn", "u-bahn", "fahrkarte", "deutschlandticket"},
	},
}

type Classifier struct {
	rules     []Rule
	threshold float64
}

func NewClassifier(rules []Rule, threshold float64) *Classifier {
	return &Classifier{rules: rules, threshold: threshold}
}

// Classification is the classifier's verdict. Score is zero when the
// category fell back to Other.
type Classification struct {
	Category domain.Category
	Score    float64
}

// Classify picks the best category for a record. Unresolved input is never
// an error, it is classified as Other.
func (c *Classifier) Classify(merchant, note, hint string) Classification {
	merchant = fold(merchant)
	note = fold(note)

	scores := make(map[domain.Category]float64)
	keyword := make(map[domain.Category]bool)
	raise := func(cat domain.Category, s float64) {
		if s > scores[cat] {
			scores[cat] = s
		}
	}

	for _, r := range c.rules {
		if merchant != "" {
			if matchAny(r.Merchants, merchant) {
				raise(r.Category, scoreMerchantField)
				keyword[r.Category] = true
			} else if matchAny(r.Keywords, merchant) {
				raise(r.Category, scoreKeyword)
				keyword[r.Category] = true
			}
		}
		if note != "" {
			if matchAny(r.Merchants, note) {
				raise(r.Category, scoreMerchantText)
				keyword[r.Category] = true
			} else if matchAny(r.Keywords, note) {
				raise(r.Category, scoreKeyword)
				keyword[r.Category] = true
			}
		}
	}

	if cat, ok := domain.ParseCategory(stripEmoji(hint)); ok && cat != domain.CategoryOther {
		if keyword[cat] {
			scores[cat] += scoreAgreement
		} else {
			raise(cat, scoreHint)
		}
	}

	best := Classification{Category: domain.CategoryOther}
	for _, cat := range domain.Categories {
		if s := scores[cat]; s > best.Score {
			best = Classification{Category: cat, Score: s}
		}
	}

	if best.Score < c.threshold {
		return Classification{Category: domain.CategoryOther}
	}
	return best
}

// MerchantName returns the matching merchant rule when text names a known
// shop, and false otherwise.
func (c *Classifier) MerchantName(text string) (domain.Category, bool) {
	text = fold(text)
	if text == "" {
		return "", false
	}
	for _, r := range c.rules {
		if matchAny(r.Merchants, text) {
			return r.Category, true
		}
	}
	return "", false
}

func matchAny(patterns []string, text string) bool {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	for _, p := range patterns {
		if strings.Contains(p, " ") {
			if glob.Glob("*"+p+"*", text) {
				return true
			}
			continue
		}
		for _, w := range words {
			if glob.Glob(p, w) {
				return true
			}
		}
	}
	return false
}

func stripEmoji(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r > 0x2000 {
			return -1
		}
		return r
	}, s))
}

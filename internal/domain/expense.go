package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

type Category string

const (
	CategoryGroceries    Category = "Groceries"
	CategoryFoodTakeout  Category = "Food Takeout"
	CategoryTravel       Category = "Travel"
	CategorySubscription Category = "Subscription"
	CategoryInvestment   Category = "Investment"
	CategoryHousehold    Category = "Household"
	CategoryTransport    Category = "Transport"
	CategoryOther        Category = "Other"
)

// Categories is the closed category enumeration in display order.
var Categories = []Category{
	CategoryGroceries,
	CategoryFoodTakeout,
	CategoryTravel,
	CategorySubscription,
	CategoryInvestment,
	CategoryHousehold,
	CategoryTransport,
	CategoryOther,
}

// ParseCategory matches s against the enumeration, ignoring case, surrounding
// whitespace and trailing emoji ("Groceries 🛒").
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) || hasFoldPrefixWord(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

func hasFoldPrefixWord(s, prefix string) bool {
	if len(s) <= len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return false
	}
	return s[len(prefix)] == ' '
}

func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

type Expense struct {
	Date     time.Time       `json:"date"`
	Amount   decimal.Decimal `json:"amount"`
	Category Category        `json:"category"`
	Merchant string          `json:"merchant"`
	Note     string          `json:"note"`
	Actor    string          `json:"actor"`

	// Position is the row the record was read from or written to. Zero when
	// unknown.
	Position int `json:"position,omitempty"`
}

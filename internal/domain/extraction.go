package domain

import "time"

type Kind string

const (
	KindExpense Kind = "expense"
	KindGoal    Kind = "goal"
)

// Payload is what a user sent: free text, an image, or both (a photo caption).
type Payload struct {
	Text  string
	Image []byte
}

func (p Payload) IsImage() bool { return len(p.Image) > 0 }

// RawExtraction is the candidate record as returned by the inference service,
// before normalization. All values are the service's strings, untouched.
type RawExtraction struct {
	Kind Kind `json:"-"`

	// Expense fields
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Merchant string `json:"merchant"`
	Category string `json:"category"`
	Date     string `json:"date"`

	// Goal fields
	Name         string `json:"name"`
	TypeHint     string `json:"type"`
	TargetAmount string `json:"target_amount"`
	TargetDate   string `json:"target_date"`

	Note string `json:"note"`

	// Text is the user's original message, kept for disambiguation.
	Text string `json:"-"`

	ReferenceDate time.Time `json:"-"`
}

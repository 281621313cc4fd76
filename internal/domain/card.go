package domain

import (
	"time"

	"github.com/google/uuid"
)

// CardType defines the type of a payment card.
type CardType string

const (
	DebitCard  CardType = "Debit"
	CreditCard CardType = "Credit"
)

// Valid reports whether the card type is one of the issuable kinds.
func (t CardType) Valid() bool {
	return t == DebitCard || t == CreditCard
}

// Card represents a payment card owned by exactly one account. The card
// number and CVV are immutable after issuance; only the PIN may change.
// Secrets are present here on purpose: masking is a presentation concern.
type Card struct {
	ID         uuid.UUID `json:"id"`
	AccountID  uuid.UUID `json:"account_id"`
	CardNumber string    `json:"card_number"`
	Type       CardType  `json:"card_type"`
	PIN        string    `json:"pin"`
	CVV        string    `json:"cvv"`
	CreatedAt  time.Time `json:"created_at"`
}

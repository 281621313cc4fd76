package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEvent is the payload published to the message broker after a funds
// movement has committed. Publishing is best-effort and happens outside the
// atomic unit; consumers must treat the ledger table as the source of truth.
type LedgerEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	AccountID     uuid.UUID `json:"account_id"`
	Kind          EntryKind `json:"kind"`
	Amount        int64     `json:"amount"`
	Counterparty  string    `json:"counterparty_account_number,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

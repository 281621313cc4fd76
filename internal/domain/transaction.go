/**
 * @description
 * This file defines the immutable transaction record: one entry is appended
 * per balance change, within the same atomic unit as the change itself.
 * Records are never mutated or deleted.
 *
 * @notes
 * - An internal transfer writes two records, one transfer_out leg for the
 *   sender and one transfer_in leg for the recipient. A transfer to an
 *   external account number writes the outbound leg only.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	EntryDeposit     EntryKind = "deposit"
	EntryWithdrawal  EntryKind = "withdrawal"
	EntryTransferOut EntryKind = "transfer_out"
	EntryTransferIn  EntryKind = "transfer_in"
)

// Transaction is one immutable ledger entry.
type Transaction struct {
	ID           uuid.UUID `json:"id"`
	AccountID    uuid.UUID `json:"account_id"`
	Kind         EntryKind `json:"kind"`
	Amount       int64     `json:"amount"` // minor units, always positive
	Counterparty string    `json:"counterparty_account_number"`
	CreatedAt    time.Time `json:"created_at"`
}

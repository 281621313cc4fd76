/**
 * @description
 * This file defines the domain model for a Beneficiary. A beneficiary is a
 * named pointer from one account to a target account number. It is data,
 * not an ownership link: the target may or may not resolve to an account
 * inside this ledger.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Beneficiary represents a saved transfer target for an account.
type Beneficiary struct {
	ID                  uuid.UUID `json:"id"`
	AccountID           uuid.UUID `json:"account_id"`
	Name                string    `json:"name"`
	TargetAccountNumber string    `json:"target_account_number"`
	CreatedAt           time.Time `json:"created_at"`
}

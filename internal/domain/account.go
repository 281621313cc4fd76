/**
 * @description
 * This file defines the core domain model for an Account. An account is the
 * single balance-bearing record each user holds; its balance is stored in
 * minor units (cents) and must never be negative at a committed state.
 *
 * @notes
 * - The account number is a 10-digit string, globally unique, and is the
 *   identifier beneficiaries and transfer targets reference.
 * - SecretHash is a bcrypt hash; the plaintext secret never leaves the
 *   registration/login path.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a user's balance-bearing account.
type Account struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	SecretHash    string    `json:"-"`
	FullName      string    `json:"full_name"`
	Address       string    `json:"address"`
	NationalID    string    `json:"national_id"`
	Mobile        string    `json:"mobile"`
	AccountNumber string    `json:"account_number"`
	Balance       int64     `json:"balance"` // minor units
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Profile is the caller-editable slice of an account.
type Profile struct {
	FullName   string `json:"full_name"`
	Address    string `json:"address"`
	NationalID string `json:"national_id"`
	Mobile     string `json:"mobile"`
}

// ProfileUpdate carries a partial profile change. Empty fields are left
// untouched; NationalID is immutable after registration and has no slot here.
type ProfileUpdate struct {
	FullName string
	Address  string
	Mobile   string
}

// IsEmpty reports whether the update carries no field at all.
func (u ProfileUpdate) IsEmpty() bool {
	return u.FullName == "" && u.Address == "" && u.Mobile == ""
}

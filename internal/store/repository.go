/**
 * @description
 * This file defines the interfaces for the data access layer. Components
 * depend on these contracts, not on the concrete PostgreSQL implementation,
 * which keeps the business layer testable with in-memory stubs.
 *
 * @notes
 * - Every funds-movement method is one atomic unit: the balance read, the
 *   dependent write, and the ledger append commit or roll back together.
 */
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/corebank/banking-service/internal/domain"
)

// CardSpec describes a card to issue; numbers and secrets are allocated by
// the repository at insert time.
type CardSpec struct {
	Type CardType
}

// CardType aliases the domain card type for issuance requests.
type CardType = domain.CardType

// TransferResult reports both legs of a committed transfer. Incoming is nil
// when the target account number did not resolve to an internal account.
type TransferResult struct {
	Outgoing domain.Transaction
	Incoming *domain.Transaction
	Internal bool
}

// AccountRepository defines account and profile persistence.
type AccountRepository interface {
	// RegisterAccount creates the account together with its initial cards
	// as one atomic unit; a failure issuing any card rolls the account back.
	// The account number and all card secrets are allocated inside the call.
	RegisterAccount(ctx context.Context, account *domain.Account, cards []CardSpec) (*domain.Account, error)
	FindAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	FindAccountByUsername(ctx context.Context, username string) (*domain.Account, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update domain.ProfileUpdate) (bool, error)
}

// FundsRepository defines the atomic funds-movement operations.
type FundsRepository interface {
	Deposit(ctx context.Context, accountID uuid.UUID, amount int64) (*domain.Transaction, error)
	Withdraw(ctx context.Context, accountID uuid.UUID, amount int64) (*domain.Transaction, error)
	Transfer(ctx context.Context, senderID uuid.UUID, targetAccountNumber string, amount int64) (*TransferResult, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)
}

// BeneficiaryRepository defines beneficiary persistence.
type BeneficiaryRepository interface {
	CreateBeneficiary(ctx context.Context, b *domain.Beneficiary) (*domain.Beneficiary, error)
	ListBeneficiaries(ctx context.Context, accountID uuid.UUID) ([]domain.Beneficiary, error)
}

// CardRepository defines card issuance and mutation.
type CardRepository interface {
	// IssueCard allocates a fresh checked-unique card number plus secrets.
	IssueCard(ctx context.Context, accountID uuid.UUID, cardType CardType) (*domain.Card, error)
	ListCards(ctx context.Context, accountID uuid.UUID) ([]domain.Card, error)
	// UpdateCardPIN accepts either the full 16-digit card number or its last
	// 4 digits. A suffix shared by more than one of the owner's cards fails
	// with domain.ErrAmbiguousCard.
	UpdateCardPIN(ctx context.Context, accountID uuid.UUID, cardRef, newPIN string) error
}

// Repository aggregates the full persistence contract the service needs.
type Repository interface {
	AccountRepository
	FundsRepository
	BeneficiaryRepository
	CardRepository
}

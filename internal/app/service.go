/**
 * @description
 * This file contains the core business logic of the banking service. The
 * `Service` struct orchestrates registration, authentication, profile
 * management, the funds-movement operations, and the beneficiary and card
 * directories, delegating each atomic unit to the repository.
 *
 * Key rules enforced here:
 * - Input validation happens before any storage call.
 * - Secrets are bcrypt-hashed on the way in and compared with bcrypt's
 *   constant-time comparison on login.
 * - Committed funds movements emit a ledger event to the broker,
 *   best-effort and strictly after the commit.
 *
 * @dependencies
 * - internal/domain, internal/store: models, taxonomy, persistence.
 * - golang.org/x/crypto/bcrypt: secret hashing.
 * - pkg/rabbitmq: the event publisher interface.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/corebank/banking-service/internal/domain"
	"github.com/corebank/banking-service/internal/store"
	"github.com/corebank/banking-service/pkg/rabbitmq"
)

// DefaultStartingBalance is credited to every new account, in minor units.
const DefaultStartingBalance int64 = 100000 // 1000.00

// Service provides the banking business logic.
type Service struct {
	repo            store.Repository
	events          rabbitmq.Publisher
	startingBalance int64
}

// NewService creates a banking service. events may be nil when no broker is
// configured; startingBalance <= 0 selects the default.
func NewService(repo store.Repository, events rabbitmq.Publisher, startingBalance int64) *Service {
	if startingBalance <= 0 {
		startingBalance = DefaultStartingBalance
	}
	return &Service{repo: repo, events: events, startingBalance: startingBalance}
}

// RegisterInput carries everything needed to open an account.
type RegisterInput struct {
	Username string
	Secret   string
	Profile  domain.Profile
}

// Register opens an account with the starting balance and issues one debit
// and one credit card, all in one atomic unit.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.Account, error) {
	if err := domain.ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := domain.ValidateSecret(in.Secret); err != nil {
		return nil, err
	}
	if err := domain.ValidateProfile(in.Profile); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing secret: %w", err)
	}

	account := &domain.Account{
		ID:         uuid.New(),
		Username:   in.Username,
		SecretHash: string(hash),
		FullName:   strings.TrimSpace(in.Profile.FullName),
		Address:    strings.TrimSpace(in.Profile.Address),
		NationalID: in.Profile.NationalID,
		Mobile:     in.Profile.Mobile,
		Balance:    s.startingBalance,
	}
	return s.repo.RegisterAccount(ctx, account, []store.CardSpec{
		{Type: domain.DebitCard},
		{Type: domain.CreditCard},
	})
}

// Authenticate verifies the username/secret pair and returns the account.
// Lookup misses and bad secrets are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, secret string) (*domain.Account, error) {
	account, err := s.repo.FindAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.SecretHash), []byte(secret)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return account, nil
}

// GetAccount returns the full account record for the caller.
func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return s.repo.FindAccountByID(ctx, accountID)
}

// UpdateProfile applies the non-empty fields. It returns false, with no
// error, when nothing was supplied.
func (s *Service) UpdateProfile(ctx context.Context, accountID uuid.UUID, update domain.ProfileUpdate) (bool, error) {
	if update.IsEmpty() {
		return false, nil
	}
	if update.Mobile != "" {
		if err := domain.ValidateMobile(update.Mobile); err != nil {
			return false, err
		}
	}
	return s.repo.UpdateProfile(ctx, accountID, update)
}

// Deposit credits the account and records the movement.
func (s *Service) Deposit(ctx context.Context, accountID uuid.UUID, amount int64) (*domain.Transaction, error) {
	entry, err := s.repo.Deposit(ctx, accountID, amount)
	if err != nil {
		return nil, err
	}
	s.publishEntry(ctx, entry)
	return entry, nil
}

// Withdraw debits the account and records the movement.
func (s *Service) Withdraw(ctx context.Context, accountID uuid.UUID, amount int64) (*domain.Transaction, error) {
	entry, err := s.repo.Withdraw(ctx, accountID, amount)
	if err != nil {
		return nil, err
	}
	s.publishEntry(ctx, entry)
	return entry, nil
}

// Transfer moves funds to a registered beneficiary's account number.
func (s *Service) Transfer(ctx context.Context, senderID uuid.UUID, targetAccountNumber string, amount int64) (*store.TransferResult, error) {
	if err := domain.ValidateAccountNumber(targetAccountNumber); err != nil {
		return nil, err
	}
	result, err := s.repo.Transfer(ctx, senderID, targetAccountNumber, amount)
	if err != nil {
		return nil, err
	}
	s.publishEntry(ctx, &result.Outgoing)
	if result.Incoming != nil {
		s.publishEntry(ctx, result.Incoming)
	}
	return result, nil
}

// ListTransactions returns the caller's ledger entries, newest first.
func (s *Service) ListTransactions(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx, accountID)
}

// AddBeneficiary registers a transfer target for the caller.
func (s *Service) AddBeneficiary(ctx context.Context, ownerID uuid.UUID, name, targetAccountNumber string) (*domain.Beneficiary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: beneficiary name cannot be empty", domain.ErrValidation)
	}
	if err := domain.ValidateAccountNumber(targetAccountNumber); err != nil {
		return nil, err
	}

	owner, err := s.repo.FindAccountByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner.AccountNumber == targetAccountNumber {
		return nil, domain.ErrSelfTarget
	}

	return s.repo.CreateBeneficiary(ctx, &domain.Beneficiary{
		AccountID:           ownerID,
		Name:                name,
		TargetAccountNumber: targetAccountNumber,
	})
}

// ListBeneficiaries returns the caller's beneficiaries in insertion order.
func (s *Service) ListBeneficiaries(ctx context.Context, ownerID uuid.UUID) ([]domain.Beneficiary, error) {
	return s.repo.ListBeneficiaries(ctx, ownerID)
}

// IssueCard creates an additional card for the caller.
func (s *Service) IssueCard(ctx context.Context, ownerID uuid.UUID, cardType domain.CardType) (*domain.Card, error) {
	if !cardType.Valid() {
		return nil, fmt.Errorf("%w: card type must be Debit or Credit", domain.ErrValidation)
	}
	return s.repo.IssueCard(ctx, ownerID, cardType)
}

// ChangePIN updates a card PIN. cardRef is the full card number or its last
// 4 digits; an ambiguous suffix is rejected.
func (s *Service) ChangePIN(ctx context.Context, ownerID uuid.UUID, cardRef, newPIN string) error {
	if err := domain.ValidatePIN(newPIN); err != nil {
		return err
	}
	return s.repo.UpdateCardPIN(ctx, ownerID, cardRef, newPIN)
}

// ListCards returns the caller's cards, secrets included.
func (s *Service) ListCards(ctx context.Context, ownerID uuid.UUID) ([]domain.Card, error) {
	return s.repo.ListCards(ctx, ownerID)
}

// publishEntry emits a ledger event for a committed movement. Failures are
// logged and swallowed: the ledger table is the source of truth.
func (s *Service) publishEntry(ctx context.Context, entry *domain.Transaction) {
	if s.events == nil || entry == nil {
		return
	}
	event := domain.LedgerEvent{
		TransactionID: entry.ID,
		AccountID:     entry.AccountID,
		Kind:          entry.Kind,
		Amount:        entry.Amount,
		Counterparty:  entry.Counterparty,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.events.PublishLedgerEvent(ctx, event); err != nil {
		log.Printf("level=warn component=banking_service msg=\"ledger event publish failed\" transaction_id=%s err=%v", entry.ID, err)
	}
}

/**
 * @description
 * An in-memory implementation of the Repository interface. A single mutex
 * serializes every operation, so each call is one atomic unit with the
 * same observable semantics as the PostgreSQL implementation. It backs the
 * service and API tests and local development without a database.
 */
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corebank/banking-service/internal/domain"
)

// MemoryRepository is a mutex-serialized Repository.
type MemoryRepository struct {
	mu sync.Mutex

	accounts      map[uuid.UUID]*domain.Account
	byUsername    map[string]uuid.UUID
	byNumber      map[string]uuid.UUID
	cards         map[uuid.UUID][]domain.Card
	cardNumbers   map[string]uuid.UUID
	beneficiaries map[uuid.UUID][]domain.Beneficiary
	transactions  map[uuid.UUID][]domain.Transaction

	// CardIssuanceFault, when set, makes the next card insertion fail. It
	// exists so tests can prove registration rolls back as one unit.
	CardIssuanceFault error
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:      make(map[uuid.UUID]*domain.Account),
		byUsername:    make(map[string]uuid.UUID),
		byNumber:      make(map[string]uuid.UUID),
		cards:         make(map[uuid.UUID][]domain.Card),
		cardNumbers:   make(map[string]uuid.UUID),
		beneficiaries: make(map[uuid.UUID][]domain.Beneficiary),
		transactions:  make(map[uuid.UUID][]domain.Transaction),
	}
}

func (m *MemoryRepository) allocAccountNumber() (string, error) {
	for {
		number, err := newAccountNumber()
		if err != nil {
			return "", err
		}
		if _, taken := m.byNumber[number]; !taken {
			return number, nil
		}
	}
}

func (m *MemoryRepository) newCard(accountID uuid.UUID, cardType domain.CardType) (domain.Card, error) {
	if m.CardIssuanceFault != nil {
		err := m.CardIssuanceFault
		m.CardIssuanceFault = nil
		return domain.Card{}, err
	}
	pin, err := newPIN()
	if err != nil {
		return domain.Card{}, err
	}
	cvv, err := newCVV()
	if err != nil {
		return domain.Card{}, err
	}
	var number string
	for {
		number, err = newCardNumber()
		if err != nil {
			return domain.Card{}, err
		}
		if _, taken := m.cardNumbers[number]; !taken {
			break
		}
	}
	return domain.Card{
		ID:         uuid.New(),
		AccountID:  accountID,
		CardNumber: number,
		Type:       cardType,
		PIN:        pin,
		CVV:        cvv,
		CreatedAt:  time.Now(),
	}, nil
}

// RegisterAccount creates the account and its cards as one unit: nothing is
// visible unless every step succeeded.
func (m *MemoryRepository) RegisterAccount(_ context.Context, account *domain.Account, cards []CardSpec) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byUsername[account.Username]; taken {
		return nil, domain.ErrDuplicateUsername
	}
	number, err := m.allocAccountNumber()
	if err != nil {
		return nil, err
	}

	created := *account
	created.AccountNumber = number
	now := time.Now()
	created.CreatedAt = now
	created.UpdatedAt = now

	issued := make([]domain.Card, 0, len(cards))
	for _, spec := range cards {
		card, err := m.newCard(created.ID, spec.Type)
		if err != nil {
			return nil, err
		}
		issued = append(issued, card)
	}

	// Commit point: publish every row at once.
	m.accounts[created.ID] = &created
	m.byUsername[created.Username] = created.ID
	m.byNumber[created.AccountNumber] = created.ID
	for _, card := range issued {
		m.cards[created.ID] = append(m.cards[created.ID], card)
		m.cardNumbers[card.CardNumber] = card.ID
	}

	out := created
	return &out, nil
}

func (m *MemoryRepository) FindAccountByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	out := *account
	return &out, nil
}

func (m *MemoryRepository) FindAccountByUsername(_ context.Context, username string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byUsername[username]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	out := *m.accounts[id]
	return &out, nil
}

func (m *MemoryRepository) UpdateProfile(_ context.Context, id uuid.UUID, update domain.ProfileUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return false, domain.ErrAccountNotFound
	}
	if update.IsEmpty() {
		return false, nil
	}
	if update.FullName != "" {
		account.FullName = update.FullName
	}
	if update.Address != "" {
		account.Address = update.Address
	}
	if update.Mobile != "" {
		account.Mobile = update.Mobile
	}
	account.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryRepository) appendEntry(accountID uuid.UUID, kind domain.EntryKind, amount int64, counterparty string) domain.Transaction {
	entry := domain.Transaction{
		ID:           uuid.New(),
		AccountID:    accountID,
		Kind:         kind,
		Amount:       amount,
		Counterparty: counterparty,
		CreatedAt:    time.Now(),
	}
	m.transactions[accountID] = append(m.transactions[accountID], entry)
	return entry
}

func (m *MemoryRepository) Deposit(_ context.Context, accountID uuid.UUID, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	account.Balance += amount
	account.UpdatedAt = time.Now()
	entry := m.appendEntry(accountID, domain.EntryDeposit, amount, account.AccountNumber)
	return &entry, nil
}

func (m *MemoryRepository) Withdraw(_ context.Context, accountID uuid.UUID, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if account.Balance < amount {
		return nil, domain.ErrInsufficientFunds
	}
	account.Balance -= amount
	account.UpdatedAt = time.Now()
	entry := m.appendEntry(accountID, domain.EntryWithdrawal, amount, account.AccountNumber)
	return &entry, nil
}

func (m *MemoryRepository) Transfer(_ context.Context, senderID uuid.UUID, targetAccountNumber string, amount int64) (*TransferResult, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sender, ok := m.accounts[senderID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if sender.AccountNumber == targetAccountNumber {
		return nil, domain.ErrSelfTarget
	}

	known := false
	for _, b := range m.beneficiaries[senderID] {
		if b.TargetAccountNumber == targetAccountNumber {
			known = true
			break
		}
	}
	if !known {
		return nil, domain.ErrBeneficiaryNotFound
	}

	if sender.Balance < amount {
		return nil, domain.ErrInsufficientFunds
	}

	sender.Balance -= amount
	sender.UpdatedAt = time.Now()
	outgoing := m.appendEntry(senderID, domain.EntryTransferOut, amount, targetAccountNumber)
	result := &TransferResult{Outgoing: outgoing}

	if targetID, internal := m.byNumber[targetAccountNumber]; internal {
		target := m.accounts[targetID]
		target.Balance += amount
		target.UpdatedAt = time.Now()
		incoming := m.appendEntry(targetID, domain.EntryTransferIn, amount, sender.AccountNumber)
		result.Incoming = &incoming
		result.Internal = true
	}
	return result, nil
}

func (m *MemoryRepository) ListTransactions(_ context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.transactions[accountID]
	out := make([]domain.Transaction, len(entries))
	// Newest first, matching the SQL ordering.
	for i, entry := range entries {
		out[len(entries)-1-i] = entry
	}
	return out, nil
}

func (m *MemoryRepository) CreateBeneficiary(_ context.Context, b *domain.Beneficiary) (*domain.Beneficiary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[b.AccountID]; !ok {
		return nil, domain.ErrAccountNotFound
	}
	for _, existing := range m.beneficiaries[b.AccountID] {
		if existing.TargetAccountNumber == b.TargetAccountNumber {
			return nil, domain.ErrDuplicateBeneficiary
		}
	}
	created := *b
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	created.CreatedAt = time.Now()
	m.beneficiaries[b.AccountID] = append(m.beneficiaries[b.AccountID], created)
	out := created
	return &out, nil
}

func (m *MemoryRepository) ListBeneficiaries(_ context.Context, accountID uuid.UUID) ([]domain.Beneficiary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Beneficiary, len(m.beneficiaries[accountID]))
	copy(out, m.beneficiaries[accountID])
	return out, nil
}

func (m *MemoryRepository) IssueCard(_ context.Context, accountID uuid.UUID, cardType CardType) (*domain.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; !ok {
		return nil, domain.ErrAccountNotFound
	}
	card, err := m.newCard(accountID, cardType)
	if err != nil {
		return nil, err
	}
	m.cards[accountID] = append(m.cards[accountID], card)
	m.cardNumbers[card.CardNumber] = card.ID
	out := card
	return &out, nil
}

func (m *MemoryRepository) ListCards(_ context.Context, accountID uuid.UUID) ([]domain.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Card, len(m.cards[accountID]))
	copy(out, m.cards[accountID])
	return out, nil
}

func (m *MemoryRepository) UpdateCardPIN(_ context.Context, accountID uuid.UUID, cardRef, newPIN string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(cardRef) != cardNumberLength && len(cardRef) != pinLength {
		return fmt.Errorf("%w: card reference must be a full card number or its last four digits", domain.ErrValidation)
	}

	cards := m.cards[accountID]
	matched := make([]int, 0, 2)
	for i, card := range cards {
		switch len(cardRef) {
		case cardNumberLength:
			if card.CardNumber == cardRef {
				matched = append(matched, i)
			}
		case pinLength:
			if card.CardNumber[len(card.CardNumber)-pinLength:] == cardRef {
				matched = append(matched, i)
			}
		}
	}
	switch {
	case len(matched) == 0:
		return domain.ErrCardNotFound
	case len(matched) > 1:
		return domain.ErrAmbiguousCard
	}
	cards[matched[0]].PIN = newPIN
	return nil
}

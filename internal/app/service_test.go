package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/corebank/banking-service/internal/domain"
	"github.com/corebank/banking-service/internal/store"
)

// capturingPublisher records every ledger event handed to it.
type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
	fail   bool
}

func (p *capturingPublisher) PublishLedgerEvent(_ context.Context, event domain.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) Close() {}

func (p *capturingPublisher) kinds() []domain.EntryKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]domain.EntryKind, len(p.events))
	for i, e := range p.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func newTestService(t *testing.T) (*Service, *store.MemoryRepository, *capturingPublisher) {
	t.Helper()
	repo := store.NewMemoryRepository()
	publisher := &capturingPublisher{}
	return NewService(repo, publisher, 0), repo, publisher
}

func registerTestAccount(t *testing.T, svc *Service, username string) *domain.Account {
	t.Helper()
	account, err := svc.Register(context.Background(), RegisterInput{
		Username: username,
		Secret:   "s3cretpass",
		Profile: domain.Profile{
			FullName:   "Test Holder",
			Address:    "1 Test Street",
			NationalID: "123456789012",
			Mobile:     "5550001111",
		},
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	return account
}

func TestRegisterOpensAccountWithStartingBalanceAndCards(t *testing.T) {
	svc, repo, _ := newTestService(t)
	account := registerTestAccount(t, svc, "alice01")

	if account.Balance != DefaultStartingBalance {
		t.Fatalf("starting balance = %d, expected %d", account.Balance, DefaultStartingBalance)
	}
	if len(account.AccountNumber) != 10 {
		t.Fatalf("account number %q is not 10 digits", account.AccountNumber)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.SecretHash), []byte("s3cretpass")); err != nil {
		t.Fatalf("stored secret hash does not match the secret: %v", err)
	}

	cards, err := repo.ListCards(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("ListCards: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected a debit and a credit card at registration, got %d cards", len(cards))
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	profile := domain.Profile{
		FullName:   "Test Holder",
		Address:    "1 Test Street",
		NationalID: "123456789012",
		Mobile:     "5550001111",
	}

	testCases := []struct {
		name  string
		input RegisterInput
	}{
		{name: "bad username", input: RegisterInput{Username: "a!", Secret: "s3cretpass", Profile: profile}},
		{name: "short secret", input: RegisterInput{Username: "alice01", Secret: "abc", Profile: profile}},
		{name: "bad profile", input: RegisterInput{Username: "alice01", Secret: "s3cretpass"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tc.input); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerTestAccount(t, svc, "alice01")

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice01",
		Secret:   "s3cretpass",
		Profile: domain.Profile{
			FullName:   "Other Holder",
			Address:    "2 Test Street",
			NationalID: "210987654321",
			Mobile:     "5550002222",
		},
	})
	if !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerTestAccount(t, svc, "alice01")
	ctx := context.Background()

	account, err := svc.Authenticate(ctx, "alice01", "s3cretpass")
	if err != nil {
		t.Fatalf("Authenticate with correct secret: %v", err)
	}
	if account.Username != "alice01" {
		t.Fatalf("authenticated wrong account: %s", account.Username)
	}

	if _, err := svc.Authenticate(ctx, "alice01", "wrongpass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong secret: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody99", "s3cretpass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown username: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	account := registerTestAccount(t, svc, "alice01")
	ctx := context.Background()

	changed, err := svc.UpdateProfile(ctx, account.ID, domain.ProfileUpdate{})
	if err != nil || changed {
		t.Fatalf("empty update: changed=%v err=%v, expected false, nil", changed, err)
	}

	if _, err := svc.UpdateProfile(ctx, account.ID, domain.ProfileUpdate{Mobile: "12"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad mobile: expected ErrValidation, got %v", err)
	}

	changed, err = svc.UpdateProfile(ctx, account.ID, domain.ProfileUpdate{Address: "7 New Road"})
	if err != nil || !changed {
		t.Fatalf("address update: changed=%v err=%v", changed, err)
	}
	after, err := svc.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if after.Address != "7 New Road" {
		t.Fatalf("address = %q after update", after.Address)
	}
	if after.FullName != account.FullName {
		t.Fatalf("untouched field changed: %q", after.FullName)
	}
}

func TestDepositAndWithdraw(t *testing.T) {
	svc, _, publisher := newTestService(t)
	account := registerTestAccount(t, svc, "alice01")
	ctx := context.Background()

	entry, err := svc.Deposit(ctx, account.ID, 50000)
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if entry.Kind != domain.EntryDeposit || entry.Amount != 50000 {
		t.Fatalf("deposit entry = %+v", entry)
	}
	if entry.Counterparty != account.AccountNumber {
		t.Fatalf("deposit counterparty = %q, expected own account number", entry.Counterparty)
	}

	if _, err := svc.Withdraw(ctx, account.ID, 20000); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	after, err := svc.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	want := DefaultStartingBalance + 50000 - 20000
	if after.Balance != want {
		t.Fatalf("balance = %d, expected %d", after.Balance, want)
	}

	kinds := publisher.kinds()
	if len(kinds) != 2 || kinds[0] != domain.EntryDeposit || kinds[1] != domain.EntryWithdrawal {
		t.Fatalf("published events = %v", kinds)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	svc, _, publisher := newTestService(t)
	account := registerTestAccount(t, svc, "alice01")
	ctx := context.Background()

	_, err := svc.Withdraw(ctx, account.ID, DefaultStartingBalance+1)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	after, _ := svc.GetAccount(ctx, account.ID)
	if after.Balance != DefaultStartingBalance {
		t.Fatalf("balance changed after rejected withdrawal: %d", after.Balance)
	}
	entries, _ := svc.ListTransactions(ctx, account.ID)
	if len(entries) != 0 {
		t.Fatalf("rejected withdrawal left %d ledger entries", len(entries))
	}
	if len(publisher.kinds()) != 0 {
		t.Fatalf("rejected withdrawal published events: %v", publisher.kinds())
	}
}

func TestInvalidMovementAmounts(t *testing.T) {
	svc, _, _ := newTestService(t)
	account := registerTestAccount(t, svc, "alice01")
	ctx := context.Background()

	for _, amount := range []int64{0, -100} {
		if _, err := svc.Deposit(ctx, account.ID, amount); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("Deposit(%d): expected ErrInvalidAmount, got %v", amount, err)
		}
		if _, err := svc.Withdraw(ctx, account.ID, amount); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("Withdraw(%d): expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestInternalTransferMovesFundsAndWritesBothLegs(t *testing.T) {
	svc, _, publisher := newTestService(t)
	sender := registerTestAccount(t, svc, "alice01")
	receiver := registerTestAccount(t, svc, "bob02")
	ctx := context.Background()

	if _, err := svc.AddBeneficiary(ctx, sender.ID, "Bob", receiver.AccountNumber); err != nil {
		t.Fatalf("AddBeneficiary: %v", err)
	}

	result, err := svc.Transfer(ctx, sender.ID, receiver.AccountNumber, 30000)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if !result.Internal || result.Incoming == nil {
		t.Fatalf("expected an internal two-leg transfer, got %+v", result)
	}
	if result.Outgoing.Kind != domain.EntryTransferOut || result.Outgoing.Counterparty != receiver.AccountNumber {
		t.Fatalf("outgoing leg = %+v", result.Outgoing)
	}
	if result.Incoming.Kind != domain.EntryTransferIn || result.Incoming.Counterparty != sender.AccountNumber {
		t.Fatalf("incoming leg = %+v", result.Incoming)
	}

	senderAfter, _ := svc.GetAccount(ctx, sender.ID)
	receiverAfter, _ := svc.GetAccount(ctx, receiver.ID)
	if senderAfter.Balance != DefaultStartingBalance-30000 {
		t.Fatalf("sender balance = %d", senderAfter.Balance)
	}
	if receiverAfter.Balance != DefaultStartingBalance+30000 {
		t.Fatalf("receiver balance = %d", receiverAfter.Balance)
	}
	// Conservation across the pair.
	if senderAfter.Balance+receiverAfter.Balance != 2*DefaultStartingBalance {
		t.Fatalf("transfer created or destroyed funds")
	}

	kinds := publisher.kinds()
	if len(kinds) != 2 || kinds[0] != domain.EntryTransferOut || kinds[1] != domain.EntryTransferIn {
		t.Fatalf("published events = %v", kinds)
	}
}

func TestExternalTransferWritesOutboundLegOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	sender := registerTestAccount(t, svc, "alice01")
	ctx := context.Background()

	const external = "7776665550"
	if _, err := svc.AddBeneficiary(ctx, sender.ID, "Outside bank", external); err != nil {
		t.Fatalf("AddBeneficiary: %v", err)
	}

	result, err := svc.Transfer(ctx, sender.ID, external, 10000)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if result.Internal || result.Incoming != nil {
		t.Fatalf("expected an outbound-only transfer, got %+v", result)
	}

	after, _ := svc.GetAccount(ctx, sender.ID)
	if after.Balance != DefaultStartingBalance-10000 {
		t.Fatalf("sender balance = %d", after.Balance)
	}
	entries, _ := svc.ListTransactions(ctx, sender.ID)
	if len(entries) != 1 || entries[0].Kind != domain.EntryTransferOut {
		t.Fatalf("expected exactly one transfer_out entry, got %v", entries)
	}
}

func TestTransferRequiresRegisteredBeneficiary(t *testing.T) {
	svc, _, _ := newTestService(t)
	sender := registerTestAccount(t, svc, "alice01")
	receiver := registerTestAccount(t, svc, "bob02")

	_, err := svc.Transfer(context.Background(), sender.ID, receiver.AccountNumber, 1000)
	if !errors.Is(err, domain.ErrBeneficiaryNotFound) {
		t.Fatalf("expected ErrBeneficiaryNotFound, got %v", err)
	}
}

func TestTransferRejectsSelfAndMalformedTarget(t *testing.T) {
	svc, _, _ := newTestService(t)
	sender := registerTestAccount(t, svc, "alice01")
	ctx := context.Background()

	if _, err := svc.Transfer(ctx, sender.ID, "12345", 1000); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("malformed target: expected ErrValidation, got %v", err)
	}
	if _, err := svc.Transfer(ctx, sender.ID, sender.AccountNumber, 1000); !errors.Is(err, domain.ErrSelfTarget) {
		t.Fatalf("self target: expected ErrSelfTarget, got %v", err)
	}
}

func TestTransferInsufficientFundsLeavesBothSidesUntouched(t *testing.T) {
	svc, _, _ := newTestService(t)
	sender := registerTestAccount(t, svc, "alice01")
	receiver := registerTestAccount(t, svc, "bob02")
	ctx := context.Background()

	if _, err := svc.AddBeneficiary(ctx, sender.ID, "Bob", receiver.AccountNumber); err != nil {
		t.Fatalf("AddBeneficiary: %v", err)
	}
	if _, err := svc.Transfer(ctx, sender.ID, receiver.AccountNumber, DefaultStartingBalance+1); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatal("expected ErrInsufficientFunds")
	}

	senderAfter, _ := svc.GetAccount(ctx, sender.ID)
	receiverAfter, _ := svc.GetAccount(ctx, receiver.ID)
	if senderAfter.Balance != DefaultStartingBalance || receiverAfter.Balance != DefaultStartingBalance {
		t.Fatalf("balances changed after rejected transfer: %d / %d", senderAfter.Balance, receiverAfter.Balance)
	}
	receiverEntries, _ := svc.ListTransactions(ctx, receiver.ID)
	if len(receiverEntries) != 0 {
		t.Fatalf("rejected transfer left entries on the receiver: %v", receiverEntries)
	}
}

func TestAddBeneficiaryRules(t *testing.T) {
	svc, _, _ := newTestService(t)
	owner := registerTestAccount(t, svc, "alice01")
	ctx := context.Background()

	if _, err := svc.AddBeneficiary(ctx, owner.ID, "   ", "1234567890"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("blank name: expected ErrValidation, got %v", err)
	}
	if _, err := svc.AddBeneficiary(ctx, owner.ID, "Me", owner.AccountNumber); !errors.Is(err, domain.ErrSelfTarget) {
		t.Fatalf("own number: expected ErrSelfTarget, got %v", err)
	}

	if _, err := svc.AddBeneficiary(ctx, owner.ID, "  Landlord  ", "1234567890"); err != nil {
		t.Fatalf("AddBeneficiary: %v", err)
	}
	if _, err := svc.AddBeneficiary(ctx, owner.ID, "Landlord twice", "1234567890"); !errors.Is(err, domain.ErrDuplicateBeneficiary) {
		t.Fatalf("expected ErrDuplicateBeneficiary, got %v", err)
	}

	list, err := svc.ListBeneficiaries(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListBeneficiaries: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Landlord" {
		t.Fatalf("expected one trimmed beneficiary, got %v", list)
	}
}

func TestIssueCardAndChangePIN(t *testing.T) {
	svc, _, _ := newTestService(t)
	owner := registerTestAccount(t, svc, "alice01")
	ctx := context.Background()

	if _, err := svc.IssueCard(ctx, owner.ID, domain.CardType("Prepaid")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown card type: expected ErrValidation, got %v", err)
	}

	card, err := svc.IssueCard(ctx, owner.ID, domain.DebitCard)
	if err != nil {
		t.Fatalf("IssueCard: %v", err)
	}

	if err := svc.ChangePIN(ctx, owner.ID, card.CardNumber, "12ab"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("malformed PIN: expected ErrValidation, got %v", err)
	}
	if err := svc.ChangePIN(ctx, owner.ID, card.CardNumber, "4321"); err != nil {
		t.Fatalf("ChangePIN: %v", err)
	}

	cards, err := svc.ListCards(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListCards: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("expected 3 cards after issuing one more, got %d", len(cards))
	}
	for _, c := range cards {
		if c.ID == card.ID && c.PIN != "4321" {
			t.Fatalf("PIN not persisted, still %q", c.PIN)
		}
	}
}

func TestBrokerFailureDoesNotFailMovements(t *testing.T) {
	svc, _, publisher := newTestService(t)
	account := registerTestAccount(t, svc, "alice01")
	publisher.fail = true

	if _, err := svc.Deposit(context.Background(), account.ID, 1000); err != nil {
		t.Fatalf("Deposit failed because of the broker: %v", err)
	}
	after, _ := svc.GetAccount(context.Background(), account.ID)
	if after.Balance != DefaultStartingBalance+1000 {
		t.Fatalf("balance = %d", after.Balance)
	}
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	svc, _, _ := newTestService(t)
	account := registerTestAccount(t, svc, "alice01")
	ctx := context.Background()

	// 100000 starting balance, 40 attempts of 6000 each: at most 16 can win.
	const attempts = 40
	const amount = 6000

	var wg sync.WaitGroup
	var succeeded int64
	var mu sync.Mutex
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Withdraw(ctx, account.ID, amount); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	after, err := svc.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if after.Balance < 0 {
		t.Fatalf("balance went negative: %d", after.Balance)
	}
	if after.Balance != DefaultStartingBalance-succeeded*amount {
		t.Fatalf("balance %d does not match %d successful withdrawals", after.Balance, succeeded)
	}
	entries, _ := svc.ListTransactions(ctx, account.ID)
	if int64(len(entries)) != succeeded {
		t.Fatalf("%d ledger entries for %d successful withdrawals", len(entries), succeeded)
	}
}

func TestConcurrentOpposingTransfersConserveFunds(t *testing.T) {
	svc, _, _ := newTestService(t)
	a := registerTestAccount(t, svc, "alice01")
	b := registerTestAccount(t, svc, "bob02")
	ctx := context.Background()

	if _, err := svc.AddBeneficiary(ctx, a.ID, "B", b.AccountNumber); err != nil {
		t.Fatalf("AddBeneficiary: %v", err)
	}
	if _, err := svc.AddBeneficiary(ctx, b.ID, "A", a.AccountNumber); err != nil {
		t.Fatalf("AddBeneficiary: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Transfer(ctx, a.ID, b.AccountNumber, 500)
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.Transfer(ctx, b.ID, a.AccountNumber, 300)
		}()
	}
	wg.Wait()

	aAfter, _ := svc.GetAccount(ctx, a.ID)
	bAfter, _ := svc.GetAccount(ctx, b.ID)
	if aAfter.Balance < 0 || bAfter.Balance < 0 {
		t.Fatalf("negative balance: %d / %d", aAfter.Balance, bAfter.Balance)
	}
	if aAfter.Balance+bAfter.Balance != 2*DefaultStartingBalance {
		t.Fatalf("funds not conserved: %d + %d", aAfter.Balance, bAfter.Balance)
	}
}

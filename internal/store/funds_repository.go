/**
 * @description
 * The transactional funds-movement engine. Each operation is one database
 * transaction: the balance read, the dependent write, and the ledger append
 * commit or roll back together, so concurrent movements against the same
 * account can never both act on a stale balance.
 *
 * @notes
 * - Rows are locked with SELECT ... FOR UPDATE. Transfers that touch two
 *   accounts acquire both locks in ascending account-number order, so two
 *   transfers targeting each other's accounts cannot deadlock.
 * - Lock waits are bounded by the session lock_timeout set in
 *   beginFundsTx; a timeout surfaces as domain.ErrTransient.
 */
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/corebank/banking-service/internal/domain"
)

const txColumns = `id, account_id, kind, amount, counterparty_account_number, created_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.AccountID, &t.Kind, &t.Amount, &t.Counterparty, &t.CreatedAt)
	if err != nil {
		return nil, classifyPgError(err)
	}
	return &t, nil
}

func appendEntry(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, kind domain.EntryKind, amount int64, counterparty string) (*domain.Transaction, error) {
	return scanTransaction(tx.QueryRow(ctx, `
		INSERT INTO transactions (id, account_id, kind, amount, counterparty_account_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+txColumns,
		uuid.New(), accountID, kind, amount, counterparty,
	))
}

// lockAccount acquires the row lock and returns the current balance and
// account number.
func lockAccount(ctx context.Context, tx pgx.Tx, id uuid.UUID) (balance int64, number string, err error) {
	err = tx.QueryRow(ctx, `
		SELECT balance, account_number FROM accounts WHERE id = $1 FOR UPDATE`, id).
		Scan(&balance, &number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", domain.ErrAccountNotFound
		}
		return 0, "", classifyPgError(err)
	}
	return balance, number, nil
}

// Deposit credits the account and appends the ledger entry in one unit.
func (r *PostgresRepository) Deposit(ctx context.Context, accountID uuid.UUID, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	tx, err := r.beginFundsTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, number, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1, updated_at = now() WHERE id = $2`, amount, accountID); err != nil {
		return nil, classifyPgError(err)
	}
	entry, err := appendEntry(ctx, tx, accountID, domain.EntryDeposit, amount, number)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, classifyPgError(err)
	}
	return entry, nil
}

// Withdraw debits the account after an in-lock balance check. The check and
// the decrement share the transaction, closing the overdraw race.
func (r *PostgresRepository) Withdraw(ctx context.Context, accountID uuid.UUID, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	tx, err := r.beginFundsTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	balance, number, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, domain.ErrInsufficientFunds
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance - $1, updated_at = now() WHERE id = $2`, amount, accountID); err != nil {
		return nil, classifyPgError(err)
	}
	entry, err := appendEntry(ctx, tx, accountID, domain.EntryWithdrawal, amount, number)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, classifyPgError(err)
	}
	return entry, nil
}

// Transfer moves funds from the sender toward a beneficiary account number.
// When the target resolves to an internal account both legs commit together;
// otherwise only the outbound leg is recorded and the money leaves the
// ledger.
func (r *PostgresRepository) Transfer(ctx context.Context, senderID uuid.UUID, targetAccountNumber string, amount int64) (*TransferResult, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	tx, err := r.beginFundsTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Resolve both parties before locking anything.
	var senderNumber string
	err = tx.QueryRow(ctx, `SELECT account_number FROM accounts WHERE id = $1`, senderID).Scan(&senderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, classifyPgError(err)
	}
	if senderNumber == targetAccountNumber {
		return nil, domain.ErrSelfTarget
	}

	known, err := beneficiaryExists(ctx, tx, senderID, targetAccountNumber)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, domain.ErrBeneficiaryNotFound
	}

	var targetID uuid.UUID
	internal := true
	err = tx.QueryRow(ctx, `SELECT id FROM accounts WHERE account_number = $1`, targetAccountNumber).Scan(&targetID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, classifyPgError(err)
		}
		internal = false
	}

	// Lock rows in ascending account-number order so opposing transfers
	// cannot deadlock.
	var senderBalance int64
	if internal {
		first, second := senderID, targetID
		if targetAccountNumber < senderNumber {
			first, second = targetID, senderID
		}
		firstBalance, _, err := lockAccount(ctx, tx, first)
		if err != nil {
			return nil, err
		}
		secondBalance, _, err := lockAccount(ctx, tx, second)
		if err != nil {
			return nil, err
		}
		if first == senderID {
			senderBalance = firstBalance
		} else {
			senderBalance = secondBalance
		}
	} else {
		senderBalance, _, err = lockAccount(ctx, tx, senderID)
		if err != nil {
			return nil, err
		}
	}

	if senderBalance < amount {
		return nil, domain.ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance - $1, updated_at = now() WHERE id = $2`, amount, senderID); err != nil {
		return nil, classifyPgError(err)
	}
	outgoing, err := appendEntry(ctx, tx, senderID, domain.EntryTransferOut, amount, targetAccountNumber)
	if err != nil {
		return nil, err
	}

	result := &TransferResult{Outgoing: *outgoing, Internal: internal}
	if internal {
		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1, updated_at = now() WHERE id = $2`, amount, targetID); err != nil {
			return nil, classifyPgError(err)
		}
		incoming, err := appendEntry(ctx, tx, targetID, domain.EntryTransferIn, amount, senderNumber)
		if err != nil {
			return nil, err
		}
		result.Incoming = incoming
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classifyPgError(err)
	}
	return result, nil
}

// ListTransactions returns the account's ledger entries, newest first.
func (r *PostgresRepository) ListTransactions(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+txColumns+` FROM transactions WHERE account_id = $1 ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Kind, &t.Amount, &t.Counterparty, &t.CreatedAt); err != nil {
			return nil, classifyPgError(err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

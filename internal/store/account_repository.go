/**
 * @description
 * This file implements account persistence: atomic registration (account
 * row plus initial card issuance in one transaction), lookups, and partial
 * profile updates.
 *
 * @notes
 * - Duplicate usernames are detected by the database unique constraint, not
 *   by a prior SELECT; the check and the insert cannot race.
 * - Generated account and card numbers are retried on collision; the unique
 *   constraints are the arbiter, never the randomness.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/corebank/banking-service/internal/domain"
)

const accountColumns = `id, username, secret_hash, full_name, address, national_id, mobile, account_number, balance, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.Username, &a.SecretHash, &a.FullName, &a.Address,
		&a.NationalID, &a.Mobile, &a.AccountNumber, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, classifyPgError(err)
	}
	return &a, nil
}

// RegisterAccount inserts the account and its initial cards as one unit.
// account.ID, SecretHash, profile fields and Balance must be set by the
// caller; the account number is allocated here.
func (r *PostgresRepository) RegisterAccount(ctx context.Context, account *domain.Account, cards []CardSpec) (*domain.Account, error) {
	for attempt := 0; attempt < allocRetries; attempt++ {
		number, err := newAccountNumber()
		if err != nil {
			return nil, err
		}

		created, err := r.tryRegister(ctx, account, number, cards)
		if err == nil {
			return created, nil
		}
		// A clash on the generated account number gets a fresh draw;
		// everything else is final.
		if uniqueViolationOn(err, "accounts_account_number_key") {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("account number allocation exhausted after %d attempts", allocRetries)
}

func (r *PostgresRepository) tryRegister(ctx context.Context, account *domain.Account, number string, cards []CardSpec) (*domain.Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO accounts (id, username, secret_hash, full_name, address, national_id, mobile, account_number, balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+accountColumns,
		account.ID, account.Username, account.SecretHash, account.FullName,
		account.Address, account.NationalID, account.Mobile, number, account.Balance,
	)
	created, err := scanAccount(row)
	if err != nil {
		if uniqueViolationOn(err, "accounts_username_key") {
			return nil, domain.ErrDuplicateUsername
		}
		return nil, err
	}

	for _, spec := range cards {
		if _, err := insertCard(ctx, tx, created.ID, spec.Type); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classifyPgError(err)
	}
	return created, nil
}

// FindAccountByID retrieves a single account.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// FindAccountByUsername retrieves an account for authentication.
func (r *PostgresRepository) FindAccountByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username))
}

// UpdateProfile applies only the supplied fields. Returns false with no
// error, and executes no statement, when every field is empty.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id uuid.UUID, update domain.ProfileUpdate) (bool, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	add := func(column, value string) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.FullName != "" {
		add("full_name", update.FullName)
	}
	if update.Address != "" {
		add("address", update.Address)
	}
	if update.Mobile != "" {
		add("mobile", update.Mobile)
	}
	if len(sets) == 0 {
		return false, nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE accounts SET %s, updated_at = now() WHERE id = $%d",
		strings.Join(sets, ", "), len(args))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, classifyPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return false, domain.ErrAccountNotFound
	}
	return true, nil
}

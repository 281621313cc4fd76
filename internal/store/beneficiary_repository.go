/**
 * @description
 * Beneficiary persistence. The (account, target account number) pair is
 * unique; a duplicate add is a Conflict, never a silent dedup.
 */
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/corebank/banking-service/internal/domain"
)

// CreateBeneficiary inserts a beneficiary record. b.ID may be zero; one is
// assigned here.
func (r *PostgresRepository) CreateBeneficiary(ctx context.Context, b *domain.Beneficiary) (*domain.Beneficiary, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO beneficiaries (id, account_id, name, target_account_number)
		VALUES ($1, $2, $3, $4)
		RETURNING id, account_id, name, target_account_number, created_at`,
		b.ID, b.AccountID, b.Name, b.TargetAccountNumber,
	)

	var created domain.Beneficiary
	err := row.Scan(&created.ID, &created.AccountID, &created.Name,
		&created.TargetAccountNumber, &created.CreatedAt)
	if err != nil {
		if uniqueViolationOn(err, "beneficiaries_account_id_target_account_number_key") || isUniqueViolation(err) {
			return nil, domain.ErrDuplicateBeneficiary
		}
		if isForeignKeyViolation(err) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, classifyPgError(err)
	}
	return &created, nil
}

// ListBeneficiaries returns the owner's beneficiaries in insertion order.
func (r *PostgresRepository) ListBeneficiaries(ctx context.Context, accountID uuid.UUID) ([]domain.Beneficiary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, account_id, name, target_account_number, created_at
		FROM beneficiaries WHERE account_id = $1 ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	var out []domain.Beneficiary
	for rows.Next() {
		var b domain.Beneficiary
		if err := rows.Scan(&b.ID, &b.AccountID, &b.Name, &b.TargetAccountNumber, &b.CreatedAt); err != nil {
			return nil, classifyPgError(err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// beneficiaryExists checks for a (owner, target) pair inside a transaction.
func beneficiaryExists(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, target string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM beneficiaries WHERE account_id = $1 AND target_account_number = $2)`,
		accountID, target).Scan(&exists)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, classifyPgError(err)
	}
	return exists, nil
}

/**
 * @description
 * This file sets up the PostgreSQL implementation of the Repository
 * interface: pool construction, per-transaction lock budget, and the
 * translation of pgx errors into the domain error taxonomy.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/domain: the error taxonomy the rest of the system branches on.
 */
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corebank/banking-service/internal/domain"
)

const (
	// defaultLockTimeoutMS bounds how long a funds operation may wait on a
	// row lock before failing with a retryable error.
	defaultLockTimeoutMS = 3000

	// allocRetries bounds the retry loop for generated-number collisions.
	allocRetries = 5
)

// PostgresRepository is the concrete Repository backed by a pgx pool.
type PostgresRepository struct {
	db            *pgxpool.Pool
	lockTimeoutMS int
}

// NewPostgresRepository creates a repository over an existing pool.
// lockTimeoutMS <= 0 selects the default lock budget.
func NewPostgresRepository(db *pgxpool.Pool, lockTimeoutMS int) *PostgresRepository {
	if lockTimeoutMS <= 0 {
		lockTimeoutMS = defaultLockTimeoutMS
	}
	return &PostgresRepository{db: db, lockTimeoutMS: lockTimeoutMS}
}

// beginFundsTx opens a transaction with the session lock budget applied, so
// no funds operation can block indefinitely on a contended row.
func (r *PostgresRepository) beginFundsTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, classifyPgError(err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeoutMS)); err != nil {
		_ = tx.Rollback(ctx)
		return nil, classifyPgError(err)
	}
	return tx, nil
}

// Postgres error codes the taxonomy cares about.
const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
)

// classifyPgError maps driver errors onto the domain taxonomy. Unique and
// check violations are left to the caller, which knows the constraint; lock
// timeouts, deadlock victims and dead connections become ErrTransient.
func classifyPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
			return fmt.Errorf("%w: %s", domain.ErrTransient, pgErr.Code)
		}
		return err
	}
	if pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	return err
}

// uniqueViolationOn reports whether err is a unique violation on the named
// constraint.
func uniqueViolationOn(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraint
}

// isUniqueViolation reports any unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// isForeignKeyViolation reports a foreign-key violation, which the card
// directory maps to a missing owner account.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

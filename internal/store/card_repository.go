/**
 * @description
 * Card persistence: issuance with checked-unique card numbers, listing, and
 * PIN updates addressed by full card number or by its last four digits.
 *
 * @notes
 * - insertCard runs against any querier so registration can issue the
 *   initial cards inside its own transaction.
 * - A 4-digit suffix owned by more than one of the caller's cards is an
 *   ambiguous match and is rejected; the caller must send the full number.
 */
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/corebank/banking-service/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const cardColumns = `id, account_id, card_number, card_type, pin, cvv, created_at`

func scanCard(row pgx.Row) (*domain.Card, error) {
	var c domain.Card
	err := row.Scan(&c.ID, &c.AccountID, &c.CardNumber, &c.Type, &c.PIN, &c.CVV, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCardNotFound
		}
		return nil, classifyPgError(err)
	}
	return &c, nil
}

// insertCard creates one card with freshly generated secrets, retrying the
// card number on a unique-constraint collision.
func insertCard(ctx context.Context, q querier, accountID uuid.UUID, cardType domain.CardType) (*domain.Card, error) {
	pin, err := newPIN()
	if err != nil {
		return nil, err
	}
	cvv, err := newCVV()
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < allocRetries; attempt++ {
		number, err := newCardNumber()
		if err != nil {
			return nil, err
		}
		card, err := scanCard(q.QueryRow(ctx, `
			INSERT INTO cards (id, account_id, card_number, card_type, pin, cvv)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+cardColumns,
			uuid.New(), accountID, number, cardType, pin, cvv,
		))
		if err == nil {
			return card, nil
		}
		if uniqueViolationOn(err, "cards_card_number_key") {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("card number allocation exhausted after %d attempts", allocRetries)
}

// IssueCard creates a new card for an existing account.
func (r *PostgresRepository) IssueCard(ctx context.Context, accountID uuid.UUID, cardType CardType) (*domain.Card, error) {
	card, err := insertCard(ctx, r.db, accountID, cardType)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return card, nil
}

// ListCards returns the account's cards in issuance order, secrets included.
func (r *PostgresRepository) ListCards(ctx context.Context, accountID uuid.UUID) ([]domain.Card, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+cardColumns+` FROM cards WHERE account_id = $1 ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.ID, &c.AccountID, &c.CardNumber, &c.Type, &c.PIN, &c.CVV, &c.CreatedAt); err != nil {
			return nil, classifyPgError(err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// UpdateCardPIN changes the PIN of the card identified by cardRef, which is
// either the full 16-digit number or the last 4 digits.
func (r *PostgresRepository) UpdateCardPIN(ctx context.Context, accountID uuid.UUID, cardRef, newPIN string) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	switch len(cardRef) {
	case cardNumberLength:
		tag, err = r.db.Exec(ctx, `
			UPDATE cards SET pin = $1 WHERE account_id = $2 AND card_number = $3`,
			newPIN, accountID, cardRef)
	case 4:
		// Count first: a shared suffix must not silently pick a card.
		var matches int
		err = r.db.QueryRow(ctx, `
			SELECT count(*) FROM cards WHERE account_id = $1 AND card_number LIKE '%' || $2`,
			accountID, cardRef).Scan(&matches)
		if err != nil {
			return classifyPgError(err)
		}
		switch {
		case matches == 0:
			return domain.ErrCardNotFound
		case matches > 1:
			return domain.ErrAmbiguousCard
		}
		tag, err = r.db.Exec(ctx, `
			UPDATE cards SET pin = $1 WHERE account_id = $2 AND card_number LIKE '%' || $3`,
			newPIN, accountID, cardRef)
	default:
		return fmt.Errorf("%w: card reference must be the full number or its last 4 digits", domain.ErrValidation)
	}

	if err != nil {
		return classifyPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCardNotFound
	}
	return nil
}

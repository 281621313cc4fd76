/**
 * @description
 * This file defines the error taxonomy for the banking core. Every expected
 * business outcome is a sentinel error so that callers can branch with
 * `errors.Is` and the HTTP layer can map each class to a status code.
 *
 * @notes
 * - The core never panics on a business condition; insufficient funds and
 *   duplicate usernames are expected, not exceptional.
 * - ErrTransient marks lock timeouts and deadlock victims: the whole
 *   operation is safe to retry. Anything not listed here is treated as a
 *   fatal store error and is surfaced wrapped, never retried automatically.
 */
package domain

import "errors"

var (
	// Validation failures: the caller's input is malformed. Not retryable.
	ErrValidation    = errors.New("invalid input")
	ErrInvalidAmount = errors.New("amount must be positive")

	// Not-found family.
	ErrAccountNotFound     = errors.New("account not found")
	ErrCardNotFound        = errors.New("card not found")
	ErrBeneficiaryNotFound = errors.New("beneficiary not found")

	// Conflict family: retrying with the same input will fail again.
	ErrDuplicateUsername    = errors.New("username already exists")
	ErrDuplicateBeneficiary = errors.New("beneficiary already exists")
	ErrAmbiguousCard        = errors.New("multiple cards match; full card number required")

	// Business rejections.
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrSelfTarget         = errors.New("target account is the caller's own account")
	ErrInvalidCredentials = errors.New("invalid username or password")

	// Transient store failures (lock timeout, deadlock victim, lost
	// connection). The caller may retry the whole operation.
	ErrTransient = errors.New("transient storage failure")
)

/**
 * @description
 * Input validation helpers shared by the registries and the funds engine.
 * The formats are fixed by the issuing scheme: 10-digit account numbers,
 * 16-digit card numbers, 4-digit PINs, 12-digit national IDs, 10-digit
 * mobile numbers.
 */
package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	usernamePattern      = regexp.MustCompile(`^[a-zA-Z0-9]{3,20}$`)
	accountNumberPattern = regexp.MustCompile(`^\d{10}$`)
	cardNumberPattern    = regexp.MustCompile(`^\d{16}$`)
	pinPattern           = regexp.MustCompile(`^\d{4}$`)
	nationalIDPattern    = regexp.MustCompile(`^\d{12}$`)
	mobilePattern        = regexp.MustCompile(`^\d{10}$`)
)

// ValidateUsername checks the registration username format.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username must be alphanumeric, 3 to 20 characters", ErrValidation)
	}
	return nil
}

// ValidateSecret enforces the minimum secret length.
func ValidateSecret(secret string) error {
	if len(secret) < 6 {
		return fmt.Errorf("%w: secret must be at least 6 characters", ErrValidation)
	}
	return nil
}

// ValidateAccountNumber checks the fixed-length numeric account number format.
func ValidateAccountNumber(number string) error {
	if !accountNumberPattern.MatchString(number) {
		return fmt.Errorf("%w: account number must be 10 digits", ErrValidation)
	}
	return nil
}

// ValidateCardNumber checks the full card number format.
func ValidateCardNumber(number string) error {
	if !cardNumberPattern.MatchString(number) {
		return fmt.Errorf("%w: card number must be 16 digits", ErrValidation)
	}
	return nil
}

// ValidatePIN checks the card PIN format.
func ValidatePIN(pin string) error {
	if !pinPattern.MatchString(pin) {
		return fmt.Errorf("%w: PIN must be 4 digits", ErrValidation)
	}
	return nil
}

// ValidateProfile checks the registration profile fields.
func ValidateProfile(p Profile) error {
	if strings.TrimSpace(p.FullName) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrValidation)
	}
	if strings.TrimSpace(p.Address) == "" {
		return fmt.Errorf("%w: address cannot be empty", ErrValidation)
	}
	if !nationalIDPattern.MatchString(p.NationalID) {
		return fmt.Errorf("%w: national ID must be 12 digits", ErrValidation)
	}
	if !mobilePattern.MatchString(p.Mobile) {
		return fmt.Errorf("%w: mobile must be 10 digits", ErrValidation)
	}
	return nil
}

// ValidateMobile checks the mobile format for profile updates.
func ValidateMobile(mobile string) error {
	if !mobilePattern.MatchString(mobile) {
		return fmt.Errorf("%w: mobile must be 10 digits", ErrValidation)
	}
	return nil
}

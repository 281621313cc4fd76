/**
 * @description
 * Generation of account numbers, card numbers, PINs and CVVs. Digits come
 * from crypto/rand; uniqueness of account and card numbers is not assumed
 * from randomness but enforced by the database unique constraints, with a
 * bounded retry loop at each insertion site.
 */
package store

import (
	"crypto/rand"
	"fmt"
)

const (
	accountNumberLength = 10
	cardNumberLength    = 16
	pinLength           = 4
	cvvLength           = 3
)

// randomDigits returns n uniformly random decimal digits. Bytes >= 250 are
// discarded so the modulo does not skew the distribution.
func randomDigits(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("reading random digits: %w", err)
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			out = append(out, '0'+b%10)
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

func newAccountNumber() (string, error) { return randomDigits(accountNumberLength) }
func newCardNumber() (string, error)    { return randomDigits(cardNumberLength) }
func newPIN() (string, error)           { return randomDigits(pinLength) }
func newCVV() (string, error)           { return randomDigits(cvvLength) }

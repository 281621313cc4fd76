package domain

import (
	"errors"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	valid := []string{"abc", "Alice01", "a1b2c3d4e5f6g7h8i9j0"}
	for _, username := range valid {
		if err := ValidateUsername(username); err != nil {
			t.Errorf("ValidateUsername(%q) returned error: %v", username, err)
		}
	}

	invalid := []string{"", "ab", "way_too_long_username_over_twenty", "has space", "bad-char!"}
	for _, username := range invalid {
		err := ValidateUsername(username)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("ValidateUsername(%q) = %v, expected ErrValidation", username, err)
		}
	}
}

func TestValidateSecret(t *testing.T) {
	if err := ValidateSecret("hunter2!"); err != nil {
		t.Fatalf("ValidateSecret rejected a valid secret: %v", err)
	}
	if err := ValidateSecret("short"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ValidateSecret(short) = %v, expected ErrValidation", err)
	}
}

func TestValidateAccountNumber(t *testing.T) {
	if err := ValidateAccountNumber("0123456789"); err != nil {
		t.Fatalf("ValidateAccountNumber rejected a valid number: %v", err)
	}
	for _, number := range []string{"", "123", "12345678901", "12345abcde"} {
		if err := ValidateAccountNumber(number); !errors.Is(err, ErrValidation) {
			t.Errorf("ValidateAccountNumber(%q) = %v, expected ErrValidation", number, err)
		}
	}
}

func TestValidatePIN(t *testing.T) {
	if err := ValidatePIN("0042"); err != nil {
		t.Fatalf("ValidatePIN rejected a valid PIN: %v", err)
	}
	for _, pin := range []string{"", "12", "12345", "12a4"} {
		if err := ValidatePIN(pin); !errors.Is(err, ErrValidation) {
			t.Errorf("ValidatePIN(%q) = %v, expected ErrValidation", pin, err)
		}
	}
}

func TestValidateProfile(t *testing.T) {
	base := Profile{
		FullName:   "Ada Lovelace",
		Address:    "12 Analytical Lane",
		NationalID: "123456789012",
		Mobile:     "5551234567",
	}
	if err := ValidateProfile(base); err != nil {
		t.Fatalf("ValidateProfile rejected a valid profile: %v", err)
	}

	testCases := []struct {
		name   string
		mutate func(*Profile)
	}{
		{name: "blank name", mutate: func(p *Profile) { p.FullName = "   " }},
		{name: "blank address", mutate: func(p *Profile) { p.Address = "" }},
		{name: "short national id", mutate: func(p *Profile) { p.NationalID = "12345" }},
		{name: "alpha national id", mutate: func(p *Profile) { p.NationalID = "12345678901a" }},
		{name: "short mobile", mutate: func(p *Profile) { p.Mobile = "555123" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			tc.mutate(&p)
			if err := ValidateProfile(p); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

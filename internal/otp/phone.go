// Package otp holds the phone sign-in rules: number normalization, code
// validation and the resend cooldown.
package otp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPhone = errors.New("invalid Kenyan mobile number")
	ErrInvalidCode  = errors.New("invalid one-time password")
)

// DefaultCodeLength is the number of digits in a one-time password.
const DefaultCodeLength = 6

const countryCode = "254"

// NormalizePhone accepts 07XXXXXXXX, 01XXXXXXXX, +254XXXXXXXXX and
// 254XXXXXXXXX (spaces and dashes allowed) and returns 254XXXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	var subscriber string
	switch {
	case strings.HasPrefix(s, "+"+countryCode):
		subscriber = s[len(countryCode)+1:]
	case strings.HasPrefix(s, countryCode) && len(s) == len(countryCode)+9:
		subscriber = s[len(countryCode):]
	case strings.HasPrefix(s, "0") && len(s) == 10:
		subscriber = s[1:]
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}

	if len(subscriber) != 9 || !digits(subscriber) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	if subscriber[0] != '7' && subscriber[0] != '1' {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return countryCode + subscriber, nil
}

// ValidateCode requires exactly length digits. A non-positive length means
// DefaultCodeLength.
func ValidateCode(code string, length int) error {
	if length <= 0 {
		length = DefaultCodeLength
	}
	code = strings.TrimSpace(code)
	if len(code) != length || !digits(code) {
		return fmt.Errorf("%w: expected %d digits", ErrInvalidCode, length)
	}
	return nil
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"leadrouter_backend/platform/apperr"

	"github.com/nyaruka/phonenumbers"
)

const (
	// DefaultRegion is the region used to parse numbers without a country prefix.
	DefaultRegion = "BR"

	countryCodePrefix = "55"
	mobileLeadDigit   = '9'
)

const msgMalformedPhone = "malformed phone input"

// Normalize reduces a raw phone to the key used for exclusivity checks.
// Non-digits are stripped, the country code is dropped from numbers longer
// than 11 digits, and a leading mobile digit is dropped from numbers longer
// than 9 digits. The rules are applied until the value stops changing so the
// result is stable under repeated application.
func Normalize(raw string) string {
	digits := digitsOnly(raw)
	for {
		next := stripOnce(digits)
		if next == digits {
			return digits
		}
		digits = next
	}
}

func stripOnce(digits string) string {
	if strings.HasPrefix(digits, countryCodePrefix) && len(digits) > 11 {
		digits = digits[len(countryCodePrefix):]
	}

	if len(digits) > 9 && digits[0] == mobileLeadDigit {
		digits = digits[1:]
	}

	return digits
}

// Equivalent reports whether two raw phones share the same normalized key.
func Equivalent(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Validate rejects input that cannot identify a contact. Numbers must contain
// digits and be a possible number for the region according to libphonenumber.
func Validate(raw, region string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || digitsOnly(trimmed) == "" {
		return apperr.Validation(msgMalformedPhone)
	}
	if region == "" {
		region = DefaultRegion
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, msgMalformedPhone, err)
	}
	if !phonenumbers.IsPossibleNumber(number) {
		return apperr.Validation(msgMalformedPhone)
	}

	return nil
}

// FormatE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func FormatE164(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}
	if region == "" {
		region = DefaultRegion
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

func digitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

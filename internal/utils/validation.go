package utils

import (
	"fmt"
	"regexp"

	"github.com/asaskevich/govalidator"
	"github.com/shopspring/decimal"
)

var (
	// rxEmail is a regex used to validate e-mail addresses, according with the reference https://www.alexedwards.net/blog/validation-snippets-for-go#email-validation.
	rxEmail = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+\\/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

	// rxIBAN validates the overall IBAN shape: country code, two check
	// digits, then up to 30 alphanumerics. Country-specific lengths are not
	// enforced here.
	rxIBAN = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}$`)

	rxCurrency = regexp.MustCompile(`^[A-Z]{3}$`)
)

func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if !rxEmail.MatchString(email) {
		return fmt.Errorf("the provided email is not valid")
	}

	return nil
}

// ValidateAmount checks that the string parses as a decimal with at most two
// fractional digits and is strictly positive.
func ValidateAmount(amount string) error {
	if amount == "" {
		return fmt.Errorf("amount cannot be empty")
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("the provided amount is not a valid number")
	}

	if value.Exponent() < -2 {
		return fmt.Errorf("the provided amount has more than two decimal places")
	}

	if !value.IsPositive() {
		return fmt.Errorf("the provided amount must be greater than zero")
	}

	return nil
}

// ValidateCurrencyCode checks the ISO 4217 alphabetic shape (three uppercase
// letters).
func ValidateCurrencyCode(code string) error {
	if !rxCurrency.MatchString(code) {
		return fmt.Errorf("%q is not a valid ISO 4217 currency code", code)
	}
	return nil
}

// ValidateIBAN checks the IBAN shape and its mod-97 check digits.
func ValidateIBAN(iban string) error {
	if !rxIBAN.MatchString(iban) {
		return fmt.Errorf("%q is not a valid IBAN", iban)
	}

	// Move the leading four characters to the end, map letters to 10..35 and
	// take mod 97 over the resulting digit string.
	rearranged := iban[4:] + iban[:4]
	remainder := 0
	for _, r := range rearranged {
		var v int
		switch {
		case r >= '0' && r <= '9':
			v = int(r - '0')
			remainder = (remainder*10 + v) % 97
		default:
			v = int(r-'A') + 10
			remainder = (remainder*100 + v) % 97
		}
	}
	if remainder != 1 {
		return fmt.Errorf("%q has invalid IBAN check digits", iban)
	}

	return nil
}

// ValidateUUID checks that the string is a well-formed UUID.
func ValidateUUID(id string) error {
	if !govalidator.IsUUID(id) {
		return fmt.Errorf("%q is not a valid UUID", id)
	}
	return nil
}

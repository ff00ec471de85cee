// Package swift validates BICs and builds/parses MT103 single customer
// credit transfer messages.
package swift

import (
	"fmt"
	"strings"
)

// knownCountryCodes is the ISO 3166-1 alpha-2 set accepted in a BIC's country
// position. Correspondent routing only reaches countries on this list.
var knownCountryCodes = map[string]struct{}{}

func init() {
	codes := []string{
		"AD", "AE", "AT", "AU", "BE", "BG", "BR", "CA", "CH", "CN", "CY", "CZ",
		"DE", "DK", "EE", "ES", "FI", "FR", "GB", "GI", "GR", "HK", "HR", "HU",
		"IE", "IN", "IS", "IT", "JP", "KR", "LI", "LT", "LU", "LV", "MC", "MT",
		"MX", "NL", "NO", "NZ", "PL", "PT", "RO", "SE", "SG", "SI", "SK", "SM",
		"TR", "US", "ZA",
	}
	for _, code := range codes {
		knownCountryCodes[code] = struct{}{}
	}
}

func isLetter(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

func isAlnum(b byte) bool {
	return isLetter(b) || (b >= '0' && b <= '9')
}

// ValidateBIC checks the structural rules of a BIC: bank code (4 letters),
// country (2 letters from the known set), location (2 alphanumerics) and an
// optional branch (3 alphanumerics).
func ValidateBIC(bic string) error {
	bic = strings.ToUpper(strings.TrimSpace(bic))

	if len(bic) != 8 && len(bic) != 11 {
		return fmt.Errorf("BIC %q must be 8 or 11 characters long", bic)
	}

	for i := 0; i < 4; i++ {
		if !isLetter(bic[i]) {
			return fmt.Errorf("BIC %q bank code must be 4 letters", bic)
		}
	}

	countryCode := bic[4:6]
	if !isLetter(countryCode[0]) || !isLetter(countryCode[1]) {
		return fmt.Errorf("BIC %q country code must be 2 letters", bic)
	}
	if _, ok := knownCountryCodes[countryCode]; !ok {
		return fmt.Errorf("BIC %q has unknown country code %q", bic, countryCode)
	}

	for i := 6; i < 8; i++ {
		if !isAlnum(bic[i]) {
			return fmt.Errorf("BIC %q location code must be alphanumeric", bic)
		}
	}

	if len(bic) == 11 {
		for i := 8; i < 11; i++ {
			if !isAlnum(bic[i]) {
				return fmt.Errorf("BIC %q branch code must be alphanumeric", bic)
			}
		}
	}

	return nil
}

// NormalizeBIC validates and returns the 11-character form, appending the
// `XXX` head-office branch to 8-character BICs.
func NormalizeBIC(bic string) (string, error) {
	bic = strings.ToUpper(strings.TrimSpace(bic))

	if err := ValidateBIC(bic); err != nil {
		return "", err
	}

	if len(bic) == 8 {
		bic += "XXX"
	}

	return bic, nil
}

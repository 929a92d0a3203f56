package utils

import (
	"fmt"
	"regexp"
)

// Template serials follow Circular 78: form number, "C" (coded) or "K"
// (uncoded), two-digit year, invoice category letter, two serial letters.
// Example: 1C25TAA.
var templateSerialRegex = regexp.MustCompile(`^[1-6][CK]\d{2}[TDLMNBGHX][A-Z]{2}$`)

// ValidateTemplateSerial validates an e-invoice template serial
func ValidateTemplateSerial(serial string) error {
	if !templateSerialRegex.MatchString(serial) {
		return fmt.Errorf("invalid template serial format: %s", serial)
	}
	return nil
}

// ValidateTaxID validates a Vietnamese tax identification number:
// 10 digits, optionally followed by a dash and a 3-digit branch suffix
func ValidateTaxID(taxID string) error {
	matched, _ := regexp.MatchString(`^\d{10}(-\d{3})?$`, taxID)
	if !matched {
		return fmt.Errorf("invalid tax ID format: %s", taxID)
	}
	return nil
}

// ValidateAmount validates an invoice total amount
func ValidateAmount(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive: %.2f", amount)
	}
	return nil
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
}

package fragment

import "unicode"

const (
	// MaxReasonLength bounds the free-text reason on a fragment request.
	MaxReasonLength = 150
	// MinSecretLength and MaxSecretLength bound the fragment secret.
	MinSecretLength = 6
	MaxSecretLength = 20
)

// ValidateReason checks the free-text reason supplied with a fragment request.
func ValidateReason(reason string) error {
	if len(reason) > MaxReasonLength {
		return validationError("Reason too long.")
	}
	return nil
}

// ValidateSecret checks length and composition of a fragment secret: between
// 6 and 20 characters, containing at least one letter and one digit.
func ValidateSecret(secret string) error {
	if len(secret) < MinSecretLength || len(secret) > MaxSecretLength {
		return validationError("Secret too short/long.")
	}
	hasDigit := false
	hasLetter := false
	for _, r := range secret {
		if unicode.IsDigit(r) {
			hasDigit = true
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	if !hasDigit || !hasLetter {
		return validationError("Secret must contain both letters and numbers.")
	}
	return nil
}

package utils

import (
	"fmt"

	"github.com/badoux/checkmail"
)

// ValidateContactEmail checks format and, when deep is set, the domain's MX
// records. Used before starting a sequence so obviously dead addresses never
// generate pending communications.
func ValidateContactEmail(email string, deep bool) error {
	if err := checkmail.ValidateFormat(email); err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if deep {
		if err := checkmail.ValidateMX(email); err != nil {
			return fmt.Errorf("email domain not reachable: %w", err)
		}
	}
	return nil
}

package validator

import (
	"errors"
	"strings"
)

// ValidEmail checks basic address shape. Captured leads come from public
// landing-page forms, so no MX lookup or domain policy applies here.
func ValidEmail(email string) error {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return errors.New("invalid email format")
	}
	if !strings.Contains(parts[1], ".") {
		return errors.New("invalid email domain")
	}
	return nil
}

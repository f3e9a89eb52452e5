package utils

import (
	"fmt"
	"regexp"
)

var (
	identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]{0,127}$`)
	emailRegex      = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// ValidateIdentifier checks a tenant, case, definition or subject id.
// Ids are 1-128 characters of letters, digits, '.', '_', ':' or '-' and
// start with a letter or digit.
func ValidateIdentifier(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s id is required", kind)
	}
	if !identifierRegex.MatchString(id) {
		return fmt.Errorf("invalid %s id: %q", kind, id)
	}
	return nil
}

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

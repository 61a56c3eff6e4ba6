package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// EmailRegex validates email format
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// MeetingIDRegex validates meeting ID format
	MeetingIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateEmail validates an email address. Empty is allowed: the
// backend can match participants by identity or account instead.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	if len(email) > 254 {
		return fmt.Errorf("email is too long (max 254 characters)")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateMeetingID validates a meeting room identifier.
func ValidateMeetingID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("meeting ID is required")
	}
	if len(id) > 128 {
		return fmt.Errorf("meeting ID is too long (max 128 characters)")
	}
	if !MeetingIDRegex.MatchString(id) {
		return fmt.Errorf("meeting ID contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateJoinToken performs a shape check only; the backend is the
// authority on whether the token is actually valid.
func ValidateJoinToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("join token is required")
	}
	return nil
}

// ValidateDisplayName validates an optional participant display name.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if utf8.RuneCountInString(name) > 100 {
		return fmt.Errorf("display name is too long (max 100 characters)")
	}
	return nil
}
